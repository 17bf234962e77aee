package embedding

// ONNXConfig describes a sentence-embedding model exported to ONNX.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	// OutputName defaults to "output".
	OutputName string
}
