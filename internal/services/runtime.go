package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/sesgocero/articleflow/internal/engine"
	"github.com/sesgocero/articleflow/internal/gcp"
	"github.com/sesgocero/articleflow/internal/oracle"
	"github.com/sesgocero/articleflow/internal/store"
)

// Oracle provider selection.
const (
	ProviderChat   = "chat"
	ProviderVertex = "vertex"
)

// RuntimeConfig holds everything a sync command needs, loaded from the
// environment. A missing required value aborts the run before any task is
// dispatched.
type RuntimeConfig struct {
	ProjectID string

	ArticlesCollection string
	CleanCollection    string
	ClustersCollection string

	OracleProvider string
	OracleURL      string
	OracleAPIKey   string
	OracleModel    string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	RequestsPerSec float64

	VertexRegion string

	Concurrency int
}

// LoadRuntimeConfig reads and validates the environment.
func LoadRuntimeConfig() (*RuntimeConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := &RuntimeConfig{
		ProjectID:          projectID,
		ArticlesCollection: gcp.GetEnv("ARTICLES_COLLECTION", store.DefaultArticlesCollection),
		CleanCollection:    gcp.GetEnv("CLEAN_COLLECTION", store.DefaultCleanCollection),
		ClustersCollection: gcp.GetEnv("CLUSTERS_COLLECTION", store.DefaultClustersCollection),
		OracleProvider:     gcp.GetEnv("ORACLE_PROVIDER", ProviderChat),
		OracleURL:          gcp.GetEnv("DEEPSEEK_API_URL", ""),
		OracleAPIKey:       gcp.GetEnv("DEEPSEEK_API_KEY", ""),
		OracleModel:        gcp.GetEnv("ORACLE_MODEL", ""),
		VertexRegion:       gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
	}

	var err error
	if config.ConnectTimeout, err = envSeconds("ORACLE_CONNECT_TIMEOUT_SECONDS", 10); err != nil {
		return nil, err
	}
	if config.ReadTimeout, err = envSeconds("ORACLE_READ_TIMEOUT_SECONDS", 300); err != nil {
		return nil, err
	}
	if config.MaxRetries, err = envInt("ORACLE_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if config.Concurrency, err = envInt("SYNC_CONCURRENCY", 5); err != nil {
		return nil, err
	}
	if config.Concurrency < 1 {
		return nil, fmt.Errorf("SYNC_CONCURRENCY must be at least 1, got %d", config.Concurrency)
	}
	rps, err := envInt("ORACLE_REQUESTS_PER_SECOND", 0)
	if err != nil {
		return nil, err
	}
	config.RequestsPerSec = float64(rps)

	switch config.OracleProvider {
	case ProviderChat:
		if config.OracleURL == "" || config.OracleAPIKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_URL and DEEPSEEK_API_KEY environment variables must be set")
		}
	case ProviderVertex:
		// Project and region suffice; credentials come from ADC.
	default:
		return nil, fmt.Errorf("unknown ORACLE_PROVIDER %q (want %q or %q)", config.OracleProvider, ProviderChat, ProviderVertex)
	}

	return config, nil
}

// Runtime bundles the clients shared by the sync commands.
type Runtime struct {
	Config  *RuntimeConfig
	Store   *store.Store
	Gateway oracle.Gateway
	Engine  *engine.Engine

	firestoreClient *firestore.Client
	vertexGateway   *oracle.VertexGateway
}

// NewRuntime builds the store, oracle gateway and engine from the
// environment. Any failure here is fatal to the run.
func NewRuntime(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	config, err := LoadRuntimeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	runtime := &Runtime{
		Config:          config,
		Store:           store.New(firestoreClient, config.ArticlesCollection, config.CleanCollection, config.ClustersCollection),
		firestoreClient: firestoreClient,
	}

	switch config.OracleProvider {
	case ProviderVertex:
		gateway, err := oracle.NewVertexGateway(ctx, config.ProjectID, config.VertexRegion, config.OracleModel)
		if err != nil {
			runtime.Close()
			return nil, fmt.Errorf("failed to create vertex gateway: %w", err)
		}
		runtime.Gateway = gateway
		runtime.vertexGateway = gateway
	default:
		gateway, err := oracle.NewChatGateway(oracle.ChatConfig{
			URL:               config.OracleURL,
			APIKey:            config.OracleAPIKey,
			Model:             config.OracleModel,
			ConnectTimeout:    config.ConnectTimeout,
			ReadTimeout:       config.ReadTimeout,
			MaxRetries:        config.MaxRetries,
			RequestsPerSecond: config.RequestsPerSec,
		})
		if err != nil {
			runtime.Close()
			return nil, fmt.Errorf("failed to create chat gateway: %w", err)
		}
		runtime.Gateway = gateway
	}

	eng, err := engine.New(runtime.Gateway, config.Concurrency, logger)
	if err != nil {
		runtime.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	runtime.Engine = eng

	return runtime, nil
}

// Close releases the runtime's clients.
func (r *Runtime) Close() {
	if r.vertexGateway != nil {
		_ = r.vertexGateway.Close()
	}
	if r.firestoreClient != nil {
		_ = r.firestoreClient.Close()
	}
}

func envInt(key string, fallback int) (int, error) {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return value, nil
}

func envSeconds(key string, fallback int) (time.Duration, error) {
	value, err := envInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(value) * time.Second, nil
}
