package config

import "fmt"

// Validate checks the configuration for invalid values.
// Construction-time failures here are fatal: no partial client is ever built
// from an unknown backend or provider name.
func (c *Config) Validate() error {
	switch c.VectorBackend {
	case BackendBolt, BackendPGVector:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidBackend, c.VectorBackend, BackendBolt, BackendPGVector)
	}

	switch c.VectorDistance {
	case DistanceCosine, DistanceDot:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidDistance, c.VectorDistance, DistanceCosine, DistanceDot)
	}

	switch c.Provider {
	case ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if c.EmbeddingSize <= 0 || c.EmbeddingSize > 16000 {
		return fmt.Errorf("%w: %d (must be in 1..16000)", ErrInvalidEmbeddingSize, c.EmbeddingSize)
	}

	if c.VectorBatchSize <= 0 {
		return fmt.Errorf("%w: vector_batch_size %d", ErrInvalidBatchSize, c.VectorBatchSize)
	}
	if c.IndexPageSize <= 0 {
		return fmt.Errorf("%w: index_page_size %d", ErrInvalidBatchSize, c.IndexPageSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidBatchSize, c.ChunkSize)
	}

	if c.IndexThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIndexThreshold, c.IndexThreshold)
	}

	switch c.VectorBackend {
	case BackendBolt:
		if c.BoltPath == "" {
			return ErrInvalidBoltPath
		}
	case BackendPGVector:
		if c.PostgresHost == "" {
			return ErrInvalidPostgresHost
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	}

	return nil
}
