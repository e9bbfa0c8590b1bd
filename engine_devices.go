package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Devices lists the user's trusted devices ordered by session creation time.
// The entry matching currentDeviceID carries Current=true.
func (e *Engine) Devices(ctx context.Context, userID, currentDeviceID string) ([]Device, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sessions, err := e.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	devices := make([]Device, 0, len(sessions))
	for _, sess := range sessions {
		devices = append(devices, Device{
			DeviceID:    sess.DeviceID,
			DeviceModel: sess.DeviceModel,
			DeviceOS:    sess.DeviceOS,
			Current:     sess.DeviceID == currentDeviceID,
			CreatedAt:   time.Unix(sess.CreatedAt, 0).UTC(),
			UpdatedAt:   time.Unix(sess.UpdatedAt, 0).UTC(),
		})
	}

	return devices, nil
}

// Logout revokes the caller's own device session. The device's refresh
// token stops resolving immediately.
func (e *Engine) Logout(ctx context.Context, userID, deviceID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	sess, err := e.sessions.GetByDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := e.sessions.Delete(ctx, sess); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	e.metricInc(MetricSessionRemoved)
	e.emitAudit(ctx, AuditEvent{
		EventType: "logout",
		UserID:    userID,
		DeviceID:  deviceID,
		Success:   true,
	})

	return nil
}

// RemoveOtherDevice revokes another device's session after a fresh passcode
// step-up. A device cannot remove itself through this flow; that path is
// Logout. The passcode is consumed whether or not a target session exists.
func (e *Engine) RemoveOtherDevice(ctx context.Context, userID, currentDeviceID, targetDeviceID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := e.verifyAndClearOtp(ctx, &user, code); err != nil {
		return err
	}

	if targetDeviceID == currentDeviceID {
		return ErrDeviceConflict
	}

	sess, err := e.sessions.GetByDevice(ctx, userID, targetDeviceID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := e.sessions.Delete(ctx, sess); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	e.metricInc(MetricDeviceRemoved)
	e.emitAudit(ctx, AuditEvent{
		EventType: "remove_device",
		UserID:    userID,
		DeviceID:  currentDeviceID,
		Success:   true,
		Metadata:  map[string]string{"target_device": targetDeviceID},
	})

	return nil
}
