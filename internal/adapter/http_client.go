package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

// HTTPClientConfig holds the settings for the resty-backed SyncAPI client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type httpSyncAPI struct {
	client *resty.Client
	logger *logger.Logger
}

// NewHTTPSyncAPI constructs a SyncAPI speaking the engine's HTTP protocol:
// PUT /api/sync/entities/{id} with the entity as JSON body, answered with
// the server's canonical entity on acceptance or the server's current copy
// on a 409 version mismatch.
func NewHTTPSyncAPI(cfg HTTPClientConfig, log *logger.Logger) SyncAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpSyncAPI{client: cli, logger: log}
}

func (h *httpSyncAPI) SyncEntity(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error) {
	var canonical models.SyncableEntity

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", fmt.Sprintf("%s:%d", entity.ID, entity.Version)).
		SetBody(entity).
		SetResult(&canonical).
		SetError(&canonical).
		Put("/api/sync/entities/" + entity.ID)
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: sync entity %s: %w", ErrNetwork, entity.ID, err)
	}

	if mappedErr := mapHTTPError(resp); mappedErr != nil {
		if errors.Is(mappedErr, ErrVersionConflict) {
			// 409 body is the server's current copy; the resolver needs it.
			h.logger.Debug().
				Str("entity_id", entity.ID).
				Int64("local_version", entity.Version).
				Int64("server_version", canonical.Version).
				Msg("version conflict reported by server")
			return canonical, mappedErr
		}
		return models.SyncableEntity{}, mappedErr
	}

	return canonical, nil
}

// logNotifier is the stock Notifier: it records offline transitions in the
// structured log. Real deployments swap in a platform notification bridge.
type logNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier returns a Notifier writing transitions to the log.
func NewLogNotifier(log *logger.Logger) Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &logNotifier{logger: log}
}

func (n *logNotifier) OfflineModeChanged(offline bool) {
	if offline {
		n.logger.Info().Msg("entered offline mode, mutations will be queued")
		return
	}
	n.logger.Info().Msg("back online, queued mutations will sync")
}
