package config

func DefaultConfig() *Config {
	return &Config{
		Writer: WriterConfig{
			ReserveSubBlockDirectory:   0,
			ReserveAttachmentDirectory: 0,
			ReserveMetadata:            0,
			Compression:                "uncompressed",
			ZstdLevel:                  0,
		},
		Compose: ComposeConfig{
			SortByM:                true,
			VisibilityOptimization: true,
			Frame:                  "raw",
		},
		Cache: CacheConfig{
			Enabled:      false,
			Compression:  "lz4",
			MaxMemory:    ByteSize(256 * 1024 * 1024), // 256MB
			MaxSubBlocks: -1,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}
