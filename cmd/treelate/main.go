// treelate: 结构保持的 JSON 文档翻译器。
//
// 子命令：
//   - translate <file.json>: 翻译到一个或多个目标变体，逐变体写出工件；
//   - encode <file.json>: 打印行记法编码（调试）；
//   - decode <file.txt>: 恢复解析行记法/JSON 混合文本并打印 JSON（调试）；
//   - init-config [dir]: 生成默认配置模板。
//
// 退出码：0 成功；1 配置/用法错误；2 翻译失败（含部分变体失败）。
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "treelate/internal/config"
	"treelate/internal/diag"
	"treelate/internal/notation"
	"treelate/internal/pipeline"
	"treelate/internal/recovery"
	"treelate/pkg/contract"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitFailed = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type cliFlags struct {
	config        string
	transformer   string
	targets       []string
	exclude       []string
	maxChunkBytes int
	maxRetries    int
	outputDir     string
}

func run(args []string) int {
	code := exitOK
	fl := &cliFlags{}

	root := &cobra.Command{
		Use:           "treelate",
		Short:         "结构保持的 JSON 文档翻译器",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&fl.config, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")

	translateCmd := &cobra.Command{
		Use:   "translate <file.json>",
		Short: "翻译文档到目标变体，写出 <stem>.<target>.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runTranslate(cmd.Context(), fl, args[0])
			code = c
			return err
		},
	}
	translateCmd.Flags().StringVar(&fl.transformer, "transformer", "", "provider 名称（覆盖配置）")
	translateCmd.Flags().StringSliceVar(&fl.targets, "target", nil, "目标变体（可重复；覆盖配置）")
	translateCmd.Flags().StringSliceVar(&fl.exclude, "exclude", nil, "不翻译的精确路径（可重复；覆盖配置）")
	translateCmd.Flags().IntVar(&fl.maxChunkBytes, "max-chunk-bytes", 0, "单块载荷尺寸上界（覆盖配置）")
	translateCmd.Flags().IntVar(&fl.maxRetries, "max-retries", -1, "单块最大重试次数（覆盖配置；0 表示不重试）")
	translateCmd.Flags().StringVar(&fl.outputDir, "output-dir", "", "输出目录（覆盖配置）")

	encodeCmd := &cobra.Command{
		Use:   "encode <file.json|->",
		Short: "打印文档的行记法编码",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runEncode(args[0])
			code = c
			return err
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <file.txt|->",
		Short: "恢复解析行记法/JSON 混合文本并打印 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runDecode(args[0])
			code = c
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "生成默认配置 config.json（已存在则不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			c, err := runInitConfig(dir)
			code = c
			return err
		},
	}

	root.AddCommand(translateCmd, encodeCmd, decodeCmd, initCmd)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "treelate: %v\n", err)
		if code == exitOK {
			code = exitConfig
		}
	}
	return code
}

// loadConfig 按 默认 < 文件 < ENV < CLI 的优先级装配配置。
func loadConfig(fl *cliFlags) (cfgpkg.Config, error) {
	path := fl.config
	if path == "" {
		if s := os.Getenv("TREELATE_CONFIG_FILE"); s != "" {
			path = s
		}
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	var raw []byte
	if s := os.Getenv("TREELATE_CONFIG_JSON"); s != "" {
		raw = []byte(s)
	}
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.LoadJSON(path, raw)
		if err != nil {
			return cfg, fmt.Errorf("config load: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, fmt.Errorf("env overlay: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	overCLI.MaxRetries = -1
	if fl.transformer != "" {
		overCLI.Transformer = fl.transformer
	}
	if len(fl.targets) > 0 {
		overCLI.Targets = fl.targets
	}
	if len(fl.exclude) > 0 {
		overCLI.Exclude = fl.exclude
	}
	if fl.maxChunkBytes > 0 {
		overCLI.MaxChunkBytes = fl.maxChunkBytes
	}
	if fl.maxRetries >= 0 {
		overCLI.MaxRetries = fl.maxRetries
	}
	if fl.outputDir != "" {
		overCLI.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, fl.outputDir))
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

func runTranslate(ctx context.Context, fl *cliFlags, inPath string) (int, error) {
	cfg, err := loadConfig(fl)
	if err != nil {
		return exitConfig, err
	}
	comp, set, w, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return exitConfig, err
	}

	corrID := uuid.NewString()
	logger := diag.NewLogger(corrID, cfg.Logging.Level)

	data, err := os.ReadFile(inPath)
	if err != nil {
		return exitConfig, fmt.Errorf("read input: %w", err)
	}
	doc, err := contract.ParseJSON(data)
	if err != nil {
		return exitConfig, fmt.Errorf("parse input: %w", err)
	}

	rtimer := logger.Start("pipeline", "translate")
	out, err := pipeline.RunAll(ctx, comp, set, doc, cfg.Targets, logger)
	if err != nil {
		reportFailure(err)
		logger.Error("pipeline", string(diag.Classify(err)), "translate failed", err)
		return exitFailed, nil
	}

	stem := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	for _, target := range cfg.Targets {
		v := out[target]
		enc, merr := json.Marshal(v)
		if merr != nil {
			return exitFailed, fmt.Errorf("encode artifact: %w", merr)
		}
		id := contract.ArtifactID(fmt.Sprintf("%s.%s.json", stem, target))
		if werr := w.Write(ctx, id, bytes.NewReader(enc)); werr != nil {
			logger.ErrorWith("writer", string(diag.Classify(werr)), "write failed", werr, target, "")
			return exitFailed, fmt.Errorf("write artifact %s: %w", id, werr)
		}
		fmt.Fprintf(os.Stderr, "treelate: wrote %s\n", id)
	}
	rtimer.Finish("translate", int64(len(cfg.Targets)))
	return exitOK, nil
}

// reportFailure 输出面向用户的失败归类：超时/配额/格式/其他。
func reportFailure(err error) {
	var ce *pipeline.ChunkError
	where := ""
	if errors.As(err, &ce) {
		where = fmt.Sprintf("（块 %q，尝试 %d 次）", ce.Address, ce.Attempts)
	}
	switch {
	case errors.Is(err, contract.ErrChunkTimeout):
		fmt.Fprintf(os.Stderr, "treelate: 翻译失败：外部调用超时%s。可尝试增大 chunk_timeout_seconds 或减小 max_chunk_bytes。\n", where)
	case errors.Is(err, contract.ErrRateLimited):
		fmt.Fprintf(os.Stderr, "treelate: 翻译失败：上游配额/限流%s。请稍后重试或更换 provider。\n", where)
	case errors.Is(err, contract.ErrRepairExhausted):
		fmt.Fprintf(os.Stderr, "treelate: 翻译失败：返回内容无法恢复为结构化文档%s。\n", where)
	default:
		fmt.Fprintf(os.Stderr, "treelate: 翻译失败%s：%v\n", where, err)
	}
	fmt.Fprintln(os.Stderr, "treelate: 未写出任何工件（不产出部分结果）。")
}

// readInput 读取文件或 STDIN（"-"）。
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runEncode(inPath string) (int, error) {
	data, err := readInput(inPath)
	if err != nil {
		return exitConfig, fmt.Errorf("read input: %w", err)
	}
	doc, err := contract.ParseJSON(data)
	if err != nil {
		return exitConfig, fmt.Errorf("parse input: %w", err)
	}
	text, err := notation.Encode(doc)
	if err != nil {
		return exitFailed, fmt.Errorf("encode: %w", err)
	}
	fmt.Println(text)
	return exitOK, nil
}

func runDecode(inPath string) (int, error) {
	data, err := readInput(inPath)
	if err != nil {
		return exitConfig, fmt.Errorf("read input: %w", err)
	}
	v, stage, err := recovery.Parse(string(data))
	if err != nil {
		return exitFailed, fmt.Errorf("decode: %w", err)
	}
	enc, err := json.Marshal(v)
	if err != nil {
		return exitFailed, fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintf(os.Stderr, "treelate: parsed via %s\n", stage)
	fmt.Println(string(enc))
	return exitOK, nil
}

func runInitConfig(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exitConfig, fmt.Errorf("create dir: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "treelate: %s 已存在，跳过\n", path)
		return exitOK, nil
	}
	cfg := cfgpkg.DefaultTemplateConfig()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return exitConfig, fmt.Errorf("encode template: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return exitConfig, fmt.Errorf("write template: %w", err)
	}
	fmt.Fprintf(os.Stderr, "treelate: wrote %s\n", path)
	return exitOK, nil
}
