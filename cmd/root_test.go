package cmd

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel_AppliesValidLevel(t *testing.T) {
	orig := logLevel
	origLevel := logrus.GetLevel()
	defer func() {
		logLevel = orig
		logrus.SetLevel(origLevel)
	}()

	logLevel = "warn"
	setLogLevel()
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}

func TestRootCmd_HasRunAndSweepSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["sweep"])
}
