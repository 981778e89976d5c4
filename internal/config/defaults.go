package config

// Default returns the default configuration. Values mirror the service's
// documented environment defaults; credentials intentionally have none
// except the conventional local development setup.
func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:                   "bolt://localhost:7687",
			Username:              "neo4j",
			Password:              "password",
			Database:              "neo4j",
			MaxConnectionPoolSize: 50,
			MaxConnectionLifetime: 3600,
			ConnectionTimeout:     30,
			MaxRetryAttempts:      3,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      ":8001",
		},
		Backends: map[string]BackendConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     ".codon-kg",
		},
	}
}
