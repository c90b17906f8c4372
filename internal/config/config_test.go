package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "formextract",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "jobs.direct",
			},
			Queues: []QueueConfig{
				{Name: "upload_image", RoutingKey: "upload_image"},
				{Name: "extract_form", RoutingKey: "extract_form"},
			},
		},
		ObjectStore: ObjectStoreConfig{
			Bucket: "formextract-images",
		},
		Inference: InferenceConfig{
			BaseURL: "http://localhost:9090",
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Upload: UploadConfig{
			TempDir:     "/tmp/uploads",
			MaxFileSize: 1 << 20,
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			JobTimeout:        5 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			Retry: RetryConfig{
				MaxRetries:      3,
				BackoffBase:     2 * time.Second,
				BackoffMax:      time.Minute,
				BackoffStrategy: "exponential",
			},
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "formextract", cfg.Database.Database)
				assert.Equal(t, "jobs.direct", cfg.RabbitMQ.Exchange.Name)
				require.Len(t, cfg.RabbitMQ.Queues, 2)
				assert.Equal(t, "upload_image", cfg.RabbitMQ.Queues[0].Name)
				assert.Equal(t, "extract_form", cfg.RabbitMQ.Queues[1].RoutingKey)
				assert.Equal(t, "formextract-images", cfg.ObjectStore.Bucket)
				assert.Equal(t, 3, cfg.Worker.Retry.MaxRetries)
				assert.Equal(t, "exponential", cfg.Worker.Retry.BackoffStrategy)
				assert.Equal(t, "formextract-api", cfg.App.Name)
			}
		})
	}
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "no queues",
			mutate:    func(c *Config) { c.RabbitMQ.Queues = nil },
			wantErr:   true,
			errString: "at least one rabbitmq queue is required",
		},
		{
			name:      "queue without routing key",
			mutate:    func(c *Config) { c.RabbitMQ.Queues[0].RoutingKey = "" },
			wantErr:   true,
			errString: "routing key is required",
		},
		{
			name:      "empty bucket",
			mutate:    func(c *Config) { c.ObjectStore.Bucket = "" },
			wantErr:   true,
			errString: "object store bucket is required",
		},
		{
			name:      "empty upload temp dir",
			mutate:    func(c *Config) { c.Upload.TempDir = "" },
			wantErr:   true,
			errString: "upload temp_dir is required",
		},
		{
			name:      "zero max file size",
			mutate:    func(c *Config) { c.Upload.MaxFileSize = 0 },
			wantErr:   true,
			errString: "max_file_size must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "job_timeout must be greater than 0",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Worker.Retry.MaxRetries = -1 },
			wantErr:   true,
			errString: "max_retries must not be negative",
		},
		{
			name:      "zero backoff base",
			mutate:    func(c *Config) { c.Worker.Retry.BackoffBase = 0 },
			wantErr:   true,
			errString: "backoff_base must be greater than 0",
		},
		{
			name:      "unknown backoff strategy",
			mutate:    func(c *Config) { c.Worker.Retry.BackoffStrategy = "jittered" },
			wantErr:   true,
			errString: "backoff_strategy must be fixed or exponential",
		},
		{
			name:      "missing inference base url",
			mutate:    func(c *Config) { c.Inference.BaseURL = "" },
			wantErr:   true,
			errString: "inference base_url is required",
		},
		{
			name:      "missing llm base url",
			mutate:    func(c *Config) { c.LLM.BaseURL = "" },
			wantErr:   true,
			errString: "llm base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
