package ops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/device"
	"github.com/hpungsan/rolodex/internal/devicesync"
	"github.com/hpungsan/rolodex/internal/errors"
)

// Sync imports the device address book. See devicesync.Engine.Run.
func Sync(ctx context.Context, env *Env) (*devicesync.Report, error) {
	if env.Sync == nil {
		return nil, errors.NewInvalidRequest("device sync is not configured")
	}
	return env.Sync.Run(ctx)
}

// SyncStatusOutput describes the sync engine and its settings.
type SyncStatusOutput struct {
	Busy       bool             `json:"busy"`
	State      devicesync.State `json:"state"`
	Enabled    bool             `json:"enabled"`
	LastSyncAt *int64           `json:"last_sync_at,omitempty"`
	Permission string           `json:"permission"`
}

// SyncStatus reports whether a run is active and when the last one finished.
func SyncStatus(ctx context.Context, env *Env) (*SyncStatusOutput, error) {
	out := &SyncStatusOutput{State: devicesync.StateIdle}
	if env.Sync != nil {
		out.Busy = env.Sync.Busy()
		out.State = env.Sync.State()
	}

	settings := devicesync.DBSettings{DB: env.Store.DB()}
	enabled, err := settings.SyncEnabled(ctx)
	if err != nil {
		return nil, err
	}
	out.Enabled = enabled

	last, ok, err := settings.LastSync(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		ts := last.Unix()
		out.LastSyncAt = &ts
	}

	perm, err := device.DBPermissions{DB: env.Store.DB()}.Permission(ctx)
	if err != nil {
		return nil, err
	}
	out.Permission = perm
	return out, nil
}

// SetSyncEnabled turns device sync on or off.
func SetSyncEnabled(ctx context.Context, env *Env, enabled bool) (*SyncStatusOutput, error) {
	if err := db.SetSetting(ctx, env.Store.DB(), db.SettingSyncEnabled, strconv.FormatBool(enabled)); err != nil {
		return nil, err
	}
	return SyncStatus(ctx, env)
}

// Permission decisions accepted by SetSyncPermission.
const (
	PermissionGrant = "grant"
	PermissionDeny  = "deny"
	PermissionReset = "reset"
)

// SetSyncPermission records the user's decision on device contacts access.
// Reset forgets the decision so the next run asks again.
func SetSyncPermission(ctx context.Context, env *Env, decision string) (*SyncStatusOutput, error) {
	var state string
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case PermissionGrant:
		state = device.PermissionGranted
	case PermissionDeny:
		state = device.PermissionDenied
	case PermissionReset:
		state = device.PermissionUnknown
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid permission decision %q (grant, deny or reset)", decision))
	}

	perms := device.DBPermissions{DB: env.Store.DB()}
	if err := perms.SetPermission(ctx, state); err != nil {
		return nil, err
	}
	env.logger().Info("contacts permission set", zap.String("state", state))
	return SyncStatus(ctx, env)
}
