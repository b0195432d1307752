package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/services/encrypt"
	"github.com/TheMichaelB/sealfile/test/testutil"
)

const watchTimeout = 5 * time.Second

func TestWatchEvents(t *testing.T) {
	t.Run("returns on terminal event", func(t *testing.T) {
		events := make(chan encrypt.Event, 4)
		events <- encrypt.Event{Type: encrypt.EventStarted}
		events <- encrypt.Event{Type: encrypt.EventStage, Stage: models.StageReading}
		events <- encrypt.Event{Type: encrypt.EventCompleted}
		events <- encrypt.Event{Type: encrypt.EventStarted}

		var seen []encrypt.EventType
		done := watchEvents(events, make(chan struct{}), func(e encrypt.Event) {
			seen = append(seen, e.Type)
		})

		select {
		case <-done:
		case <-time.After(watchTimeout):
			t.Fatal("watcher did not stop after terminal event")
		}
		assert.Equal(t, []encrypt.EventType{encrypt.EventStarted, encrypt.EventStage, encrypt.EventCompleted}, seen)
		assert.Len(t, events, 1)
	})

	t.Run("returns when stopped without events", func(t *testing.T) {
		stop := make(chan struct{})
		done := watchEvents(make(chan encrypt.Event), stop, func(encrypt.Event) {
			t.Error("unexpected event")
		})
		close(stop)

		select {
		case <-done:
		case <-time.After(watchTimeout):
			t.Fatal("watcher did not stop")
		}
	})

	t.Run("returns when channel closes", func(t *testing.T) {
		events := make(chan encrypt.Event)
		done := watchEvents(events, make(chan struct{}), func(encrypt.Event) {})
		close(events)

		select {
		case <-done:
		case <-time.After(watchTimeout):
			t.Fatal("watcher did not stop")
		}
	})
}

func TestEncrypt_MismatchStopsWatcher(t *testing.T) {
	h := testutil.NewTestHelpers(t)
	svc, err := encrypt.NewService(testutil.TestConfigWithDir(h.TempDir()), testutil.NewTestLogger())
	require.NoError(t, err)
	defer svc.Close()

	o := svc.Orchestrator()
	file, err := models.OpenSourceFile(h.CreateTempFile("notes.txt", []byte("hello")))
	require.NoError(t, err)
	require.NoError(t, o.SelectFile(file))
	require.NoError(t, o.SetInputs(testutil.SamplePassword, "different"))

	stop := make(chan struct{})
	done := watchEvents(o.Events(), stop, func(encrypt.Event) {})

	_, err = o.SubmitForm(context.Background(), false)
	require.ErrorIs(t, err, models.ErrPasswordMismatch)

	var pe *models.PipelineError
	assert.False(t, errors.As(err, &pe))
	close(stop)

	select {
	case <-done:
	case <-time.After(watchTimeout):
		t.Fatal("watcher still running after rejected submit")
	}
}

func TestResultWriter(t *testing.T) {
	assert.Equal(t, os.Stderr, resultWriter("-"))
	assert.Equal(t, os.Stdout, resultWriter(""))
	assert.Equal(t, os.Stdout, resultWriter("./sealed"))
}

func TestPrintJSONTo(t *testing.T) {
	var buf bytes.Buffer
	printJSONTo(&buf, map[string]interface{}{"success": true})

	assert.JSONEq(t, `{"success": true}`, buf.String())
}
