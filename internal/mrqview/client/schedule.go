package client

import (
	"context"
	"net/http"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/errors"
	"github.com/marqueehq/marquee/internal/mrqview/schedule"
)

// GetCurrentContent fetches the content the authority wants rendered right
// now. A response with a nil Data and Success true means nothing is
// scheduled, which is an answer, not a failure.
func (c *Client) GetCurrentContent(ctx context.Context) (*v1alpha1.CurrentContentResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1alpha1/schedules/current", nil)
	if err != nil {
		return nil, err
	}

	var current v1alpha1.CurrentContentResponse
	if err := decodeJSON(resp, &current); err != nil {
		return nil, errors.NewError("FETCH_FAILED", "malformed current-content response",
			"GetCurrentContent", errors.ErrFetch)
	}
	return &current, nil
}

// ListSchedules fetches all schedules visible to the caller
func (c *Client) ListSchedules(ctx context.Context) (*v1alpha1.ScheduleList, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1alpha1/schedules", nil)
	if err != nil {
		return nil, err
	}

	var list v1alpha1.ScheduleList
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateSchedule validates s locally and submits it. Validation failures
// never reach the wire; the structured result rides the returned error.
func (c *Client) CreateSchedule(ctx context.Context, s v1alpha1.Schedule) (*v1alpha1.Schedule, error) {
	if err := validationError(s, "CreateSchedule"); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1alpha1/schedules", s)
	if err != nil {
		return nil, err
	}

	var created v1alpha1.Schedule
	if err := decodeJSON(resp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSchedule validates s locally and submits it under its ID
func (c *Client) UpdateSchedule(ctx context.Context, s v1alpha1.Schedule) (*v1alpha1.Schedule, error) {
	if err := validationError(s, "UpdateSchedule"); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPut, "/api/v1alpha1/schedules/"+s.ID, s)
	if err != nil {
		return nil, err
	}

	var updated v1alpha1.Schedule
	if err := decodeJSON(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSchedule removes a schedule from future resolution
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/api/v1alpha1/schedules/"+id, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func validationError(s v1alpha1.Schedule, op string) error {
	result := schedule.Validate(s)
	if result.Valid() {
		return nil
	}
	return &ValidationError{
		Result: result,
		err:    errors.NewError("INVALID_SCHEDULE", "schedule failed validation", op, errors.ErrInvalidSchedule),
	}
}

// ValidationError carries the field-scoped validation result alongside the
// coded error so callers can surface per-field messages.
type ValidationError struct {
	Result schedule.ValidationResult
	err    *errors.Error
}

func (e *ValidationError) Error() string { return e.err.Error() }

// Unwrap exposes the coded error for errors.Is checks
func (e *ValidationError) Unwrap() error { return e.err }
