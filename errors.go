package deathchest

import (
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Error codes attached to every error returned by this package.
const (
	CodeNoItems         = "CHEST_NO_ITEMS"
	CodeOccupied        = "CHEST_OCCUPIED"
	CodeShuttingDown    = "CHEST_SHUTTING_DOWN"
	CodeInvalidLocation = "CHEST_INVALID_LOCATION"
	CodeWorldDisabled   = "CHEST_WORLD_DISABLED"
	CodeWorldMutation   = "CHEST_WORLD_MUTATION"
	CodeScheduleFailed  = "CHEST_SCHEDULE_FAILED"
	CodeTeardownStep    = "CHEST_TEARDOWN_STEP"
	CodeConfigInvalid   = "CONFIG_INVALID"
)

var (
	// ErrNoItems is returned when a death chest is requested without any real items.
	ErrNoItems = errors.New("no items to store")
	// ErrOccupied is returned when the target location already holds a chest or a falling chest.
	ErrOccupied = errors.New("location already holds a death chest")
	// ErrShuttingDown is returned once Shutdown has been called.
	ErrShuttingDown = errors.New("death chests are shutting down")
	// ErrInvalidLocation is returned when the location has no world.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrWorldDisabled is returned for worlds matched by the disabled world patterns.
	ErrWorldDisabled = errors.New("death chests are disabled in this world")
	// ErrSchedulerStopped is returned by a scheduler that no longer accepts tasks.
	ErrSchedulerStopped = errors.New("scheduler stopped")
	// ErrNotContainer is returned by a World when the block at a key is not a chest.
	ErrNotContainer = errors.New("block is not a container")
	// ErrWorldUnavailable is returned by a World when the named world is unknown or closed.
	ErrWorldUnavailable = errors.New("world unavailable")
)

// logError logs err with its oops code and context, if any.
func logError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}
