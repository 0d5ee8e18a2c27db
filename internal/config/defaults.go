package config

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Google: GoogleConfig{
			BaseURL:          "https://search.google.com/_/SearchConsoleUi/data/batchexecute",
			Origin:           "https://search.google.com",
			Profile:          "Default",
			CookieTTLSeconds: 300,
			TokenTTLSeconds:  1800,
			TimeoutSeconds:   30,
		},
		Bing: BingConfig{
			Enabled:        false,
			BaseURL:        "https://ssl.bing.com/webmaster/api.svc/json",
			TimeoutSeconds: 30,
		},
		Tools: ToolsConfig{
			DefaultRowLimit: 20,
			MaxRowLimit:     1000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9178",
		},
	}
}
