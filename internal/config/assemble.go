package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"treelate/internal/pipeline"
	"treelate/pkg/contract"
	"treelate/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Targets) == 0 {
		return errors.New("config: targets empty")
	}
	for _, t := range cfg.Targets {
		if strings.TrimSpace(t) == "" {
			return errors.New("config: target cannot be empty")
		}
	}
	if cfg.MaxChunkBytes <= 0 {
		return errors.New("config: max_chunk_bytes must be > 0")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("config: max_retries must be >= 0")
	}
	if cfg.VariantConcurrency < 1 {
		return errors.New("config: variant_concurrency must be >= 1")
	}
	if cfg.Transformer == "" {
		return errors.New("config: transformer not set")
	}
	prov, ok := cfg.Provider[cfg.Transformer]
	if !ok {
		return fmt.Errorf("config: provider %q not found", cfg.Transformer)
	}
	if prov.Client == "" {
		return fmt.Errorf("config: provider %q missing client", cfg.Transformer)
	}
	if registry.Transformer[prov.Client] == nil {
		return fmt.Errorf("config: transformer client %q not registered", prov.Client)
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	if name := effName(cfg.Components.Prompt, Defaults().Components.Prompt); registry.PromptBuilder[name] == nil {
		return fmt.Errorf("config: prompt %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components、Settings 与 Writer。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, contract.Writer, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, err
	}

	d := Defaults()
	pn := effName(cfg.Components.Prompt, d.Components.Prompt)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	pb, err := registry.PromptBuilder[pn](cfg.Options.Prompt)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, err
	}
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, err
	}

	prov := cfg.Provider[cfg.Transformer]
	tr, err := registry.Transformer[prov.Client](prov.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, err
	}

	comp := pipeline.Components{
		Prompt:      pb,
		Transformer: tr,
	}
	set := pipeline.Settings{
		MaxChunkBytes:      cfg.MaxChunkBytes,
		MaxRetries:         cfg.MaxRetries,
		RetryBackoff:       time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		ChunkTimeout:       time.Duration(cfg.ChunkTimeoutSeconds) * time.Second,
		DocTimeout:         time.Duration(cfg.DocTimeoutSeconds) * time.Second,
		VariantConcurrency: cfg.VariantConcurrency,
		Excluded:           contract.NewExclusionSet(cfg.Exclude),
	}
	return comp, set, w, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
