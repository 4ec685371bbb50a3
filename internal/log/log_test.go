package log_test

import (
	"testing"

	"github.com/ignatij/goschedule/internal/log"
	"github.com/ignatij/goschedule/pkg/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	original := log.GetLogger().GetLevel()
	t.Cleanup(func() { log.GetLogger().SetLevel(original) })

	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"DEBUG", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"INFO", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			log.SetLevel(tt.in)
			assert.Equal(t, tt.want, log.GetLogger().GetLevel())
		})
	}
}

func TestLoggerSatisfiesServiceLogger(t *testing.T) {
	var l service.Logger = log.GetLogger()
	assert.NotNil(t, l)
}
