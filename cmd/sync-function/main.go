// Command sync-function exposes the sync engine as a Cloud Functions HTTP
// entry point, so a scheduler can trigger runs without a standing process.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/sesgocero/articleflow/internal/engine"
	"github.com/sesgocero/articleflow/internal/models"
	"github.com/sesgocero/articleflow/internal/services"
)

var (
	runtimeInstance *services.Runtime
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleSync", handleSync)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSync runs one engine pass under the requested strategy.
func handleSync(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		runtimeInstance, initErr = services.NewRuntime(context.Background(), slog.Default())
	})
	if initErr != nil {
		slog.Error("Critical: runtime initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	strategy, err := buildStrategy(ctx, req.Strategy)
	if err != nil {
		slog.Warn("Rejected sync request", "strategy", req.Strategy, "error", err)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}

	articles, err := runtimeInstance.Store.ListArticles(ctx)
	if err != nil {
		slog.Error("Failed to load articles", "error", err)
		http.Error(w, "Internal Server Error: failed to load articles", http.StatusInternalServerError)
		return
	}

	summary := runtimeInstance.Engine.Run(ctx, articles, strategy).Summary()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.SyncResponse{
		Status:      "success",
		RunStrategy: strategy.Name(),
		Applied:     summary.Applied,
		AlreadyDone: summary.AlreadyDone,
		Failed:      summary.Failed,
		Total:       summary.Total,
		FailedIDs:   summary.FailedIDs,
	}); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

func buildStrategy(ctx context.Context, name string) (engine.Strategy, error) {
	switch name {
	case "clean":
		return services.NewCleanStrategy(runtimeInstance.Store, slog.Default()), nil
	case "cluster":
		names, err := runtimeInstance.Store.ListClusterNames(ctx)
		if err != nil {
			return nil, err
		}
		return services.NewClusterStrategy(runtimeInstance.Store, names, slog.Default()), nil
	default:
		return nil, errUnknownStrategy(name)
	}
}

type errUnknownStrategy string

func (e errUnknownStrategy) Error() string {
	return `unknown strategy "` + string(e) + `" (want "clean" or "cluster")`
}
