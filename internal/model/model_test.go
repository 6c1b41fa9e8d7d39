package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	valid := Event{Title: "Physics 101", Kind: KindClass, Start: start, End: start.Add(90 * time.Minute)}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, 90*time.Minute, valid.Duration())

	noTitle := valid
	noTitle.Title = ""
	assert.Error(t, noTitle.Validate())

	badKind := valid
	badKind.Kind = "party"
	assert.Error(t, badKind.Validate())

	backwards := valid
	backwards.End = start.Add(-time.Minute)
	assert.Error(t, backwards.Validate())

	missing := valid
	missing.End = time.Time{}
	assert.Error(t, missing.Validate())
}
