package diag

// 最小指标接口（默认 no-op）。用量计量宿在核心范围之外，
// 适配层可通过替换实现导出：
// - op_total{comp,stage,result}
// - error_total{comp,code}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
}
