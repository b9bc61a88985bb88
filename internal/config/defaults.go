package config

// DefaultModelName is the Hugging Face id of the Italian legal encoder.
const DefaultModelName = "dlicari/Italian-Legal-BERT"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelName
	}
	if cfg.Model.ModelPath == "" {
		cfg.Model.ModelPath = "/usr/local/var/lexembed/models/italian-legal-bert/model.onnx"
	}
	if cfg.Model.VocabPath == "" {
		cfg.Model.VocabPath = "/usr/local/var/lexembed/models/italian-legal-bert/vocab.txt"
	}
	if cfg.Model.HiddenSize == 0 {
		cfg.Model.HiddenSize = 768
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 512
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = 16
	}
	if len(cfg.Model.Devices) == 0 {
		cfg.Model.Devices = []string{"coreml", "cuda", "cpu"}
	}
	if len(cfg.Model.InputNames) == 0 {
		cfg.Model.InputNames = []string{"input_ids", "attention_mask", "token_type_ids"}
	}
	if cfg.Model.OutputName == "" {
		cfg.Model.OutputName = "last_hidden_state"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
