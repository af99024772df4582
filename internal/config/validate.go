package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAdmission(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q must be host:port: %w", c.Server.Bind, err)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateAdmission() error {
	return ensurePositiveMap(map[string]int{
		"admission.requests":       c.Admission.Requests,
		"admission.window_seconds": c.Admission.WindowSeconds,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":                     c.Workflow.Workers,
		"workflow.inference_instances":         c.Workflow.InferenceInstances,
		"workflow.job_timeout_seconds":         c.Workflow.JobTimeoutSeconds,
		"workflow.queue_poll_interval_seconds": c.Workflow.QueuePollIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.Workers > c.Workflow.InferenceInstances {
		return fmt.Errorf("workflow.workers (%d) must not exceed workflow.inference_instances (%d)", c.Workflow.Workers, c.Workflow.InferenceInstances)
	}
	return nil
}

func (c *Config) validateRetention() error {
	return ensurePositiveMap(map[string]int{
		"retention.horizon_minutes":         c.Retention.HorizonMinutes,
		"retention.reaper_interval_seconds": c.Retention.ReaperIntervalSeconds,
	})
}

func (c *Config) validateWhisperX() error {
	switch c.WhisperX.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("whisperx.vad_method %q must be silero or pyannote", c.WhisperX.VADMethod)
	}
	if c.WhisperX.VADMethod == "pyannote" && c.WhisperX.HFToken == "" {
		return errors.New("whisperx.hf_token is required when whisperx.vad_method is pyannote (or set HF_TOKEN)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
