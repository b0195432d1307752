package encrypt_test

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"github.com/TheMichaelB/sealfile/internal/codec"
	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/crypto"
	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/services/encrypt"
	"github.com/TheMichaelB/sealfile/internal/state"
	"github.com/TheMichaelB/sealfile/internal/storage"
	"github.com/TheMichaelB/sealfile/test/testutil"
)

const password = testutil.SamplePassword

func newOrchestrator(t *testing.T, cfg *config.Config, random crypto.RandomSource, sink storage.OutputSink, history state.Store) *encrypt.Orchestrator {
	t.Helper()

	provider, err := crypto.NewProvider(cfg, random)
	require.NoError(t, err)

	c, err := codec.NewFromConfig(cfg)
	require.NoError(t, err)

	return encrypt.New(cfg, provider, c, sink, history, testutil.NewTestLogger())
}

func rawConfig() *config.Config {
	cfg := testutil.TestConfig()
	cfg.Output.CiphertextFormat = config.CiphertextRaw
	return cfg
}

func pipelineError(t *testing.T, err error) *models.PipelineError {
	t.Helper()

	var pe *models.PipelineError
	require.ErrorAs(t, err, &pe)
	return pe
}

func drainEvents(o *encrypt.Orchestrator) []encrypt.Event {
	var out []encrypt.Event
	for {
		select {
		case e := <-o.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

// openArtifact splits a raw-format artifact and decrypts it.
func openArtifact(t *testing.T, data []byte, pw string, iterations int) []byte {
	t.Helper()

	require.Greater(t, len(data), 16+12)
	nonce := data[len(data)-12:]
	salt := data[len(data)-12-16 : len(data)-12]
	sealed := data[:len(data)-12-16]

	input := base64.StdEncoding.EncodeToString([]byte(pw))
	key := pbkdf2.Key([]byte(input), salt, iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	require.NoError(t, err)
	return plaintext
}

func TestSubmit_Success(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	file := models.NewSourceFile("notes.txt", []byte("hello"))
	require.NoError(t, o.SelectFile(file))

	result, err := o.Submit(context.Background(), file, password)
	require.NoError(t, err)

	assert.Equal(t, "notes.txt.enc", result.OutputName)
	assert.Equal(t, "notes.txt.enc", result.Location)
	assert.NotEmpty(t, result.OperationID)
	assert.Equal(t, []string{"notes.txt.enc"}, sink.Writes())

	st := o.State()
	assert.Equal(t, models.PhaseIdle, st.Phase)
	assert.Equal(t, models.StageNone, st.Stage)
	assert.Empty(t, st.Message)
	assert.Nil(t, st.ActiveFile)
}

func TestSubmit_RawArtifactDecrypts(t *testing.T) {
	cfg := rawConfig()
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, cfg, nil, sink, nil)

	result, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.NoError(t, err)

	data, ok := sink.Read("notes.txt.enc")
	require.True(t, ok)

	// ciphertext(5) + tag(16) + salt(16) + nonce(12)
	assert.Len(t, data, 5+16+16+12)
	assert.Equal(t, len(data), result.Size)
	assert.Equal(t, []byte("hello"), openArtifact(t, data, password, cfg.Derivation.Iterations))
}

func TestSubmit_StripsByteOrderMark(t *testing.T) {
	cfg := rawConfig()
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, cfg, nil, sink, nil)

	content := append([]byte{0xEF, 0xBB, 0xBF}, "hello"...)
	_, err := o.Submit(context.Background(), models.NewSourceFile("bom.txt", content), password)
	require.NoError(t, err)

	data, _ := sink.Read("bom.txt.enc")
	assert.Equal(t, []byte("hello"), openArtifact(t, data, password, cfg.Derivation.Iterations))
}

func TestSubmit_FreshSaltAndNonce(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, rawConfig(), nil, sink, nil)
	file := models.NewSourceFile("notes.txt", []byte("hello"))

	_, err := o.Submit(context.Background(), file, password)
	require.NoError(t, err)
	first, _ := sink.Read("notes.txt.enc")

	_, err = o.Submit(context.Background(), file, password)
	require.NoError(t, err)
	second, _ := sink.Read("notes.txt.enc")

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first[len(first)-28:len(first)-12], second[len(second)-28:len(second)-12], "salt reused")
	assert.NotEqual(t, first[len(first)-12:], second[len(second)-12:], "nonce reused")
}

func TestSubmit_DeterministicWithFixedRandom(t *testing.T) {
	salt := []byte("0123456789abcdef")
	nonce := []byte("nonce-12byte")

	run := func() []byte {
		random := testutil.NewMockRandom()
		random.On("Bytes", 16).Return(salt, nil).Once()
		random.On("Bytes", 12).Return(nonce, nil).Once()

		sink := storage.NewMemorySink()
		o := newOrchestrator(t, rawConfig(), random, sink, nil)

		_, err := o.Submit(context.Background(), models.NewSourceFile("a.txt", []byte("same")), password)
		require.NoError(t, err)
		random.AssertExpectations(t)

		data, _ := sink.Read("a.txt.enc")
		return data
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Equal(t, salt, first[len(first)-28:len(first)-12])
	assert.Equal(t, nonce, first[len(first)-12:])
}

func TestSubmit_EntropyUnavailable(t *testing.T) {
	random := crypto.NewReaderSource(iotest.ErrReader(errors.New("no entropy")))
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), random, sink, nil)

	file := models.NewSourceFile("notes.txt", []byte("hello"))
	_, err := o.Submit(context.Background(), file, password)
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrEntropyUnavailable)
	pe := pipelineError(t, err)
	assert.Equal(t, models.ErrCodeEntropy, pe.Code)
	assert.Equal(t, models.StageDeriving, pe.Stage)

	st := o.State()
	assert.Equal(t, models.PhaseError, st.Phase)
	assert.NotEmpty(t, st.Message)
	assert.Same(t, file, st.ActiveFile)
	assert.Empty(t, sink.Writes())
}

func TestSubmit_ReadAborted(t *testing.T) {
	random := testutil.NewCountingRandom()
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), random, sink, nil)

	file := testutil.FailingFile("notes.txt", 5, models.ErrReadAborted)
	_, err := o.Submit(context.Background(), file, password)
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrFileReadFailed)
	assert.ErrorIs(t, err, models.ErrReadAborted)
	assert.Equal(t, models.ErrCodeFileRead, pipelineError(t, err).Code)

	assert.Equal(t, models.PhaseError, o.State().Phase)
	assert.Zero(t, random.Calls(), "no salt may be drawn after a failed read")
	assert.Empty(t, sink.Writes())
}

func TestSubmit_WriteFailure(t *testing.T) {
	sink := storage.NewMemorySink()
	sink.FailWith(errors.New("disk full"))
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	_, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrOutputWriteFailed)
	pe := pipelineError(t, err)
	assert.Equal(t, models.ErrCodeWrite, pe.Code)
	assert.Equal(t, models.StageWriting, pe.Stage)
	assert.Contains(t, o.State().Message, "disk full")
	assert.Len(t, sink.Writes(), 1)
}

func TestSubmit_NonLatin1Password(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	_, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), "密码")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDerivationFailed)
	assert.ErrorIs(t, err, crypto.ErrPasswordNotLatin1)
	assert.Equal(t, models.ErrCodeDerivation, pipelineError(t, err).Code)
	assert.Empty(t, sink.Writes())

	cfg := testutil.TestConfig()
	cfg.Derivation.PasswordEncoding = config.PasswordEncodingRaw
	o = newOrchestrator(t, cfg, nil, sink, nil)

	_, err = o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), "密码")
	assert.NoError(t, err)
}

func TestSubmit_Cancelled(t *testing.T) {
	random := testutil.NewCountingRandom()
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), random, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Submit(ctx, models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	pe := pipelineError(t, err)
	assert.Equal(t, models.ErrCodeCancelled, pe.Code)
	assert.Equal(t, models.StageReading, pe.Stage)
	assert.Equal(t, models.PhaseError, o.State().Phase)
	assert.Zero(t, random.Calls())
	assert.Empty(t, sink.Writes())
}

func TestSubmit_Validation(t *testing.T) {
	file := models.NewSourceFile("notes.txt", []byte("hello"))

	tests := []struct {
		name     string
		file     *models.SourceFile
		password string
		wantErr  error
	}{
		{"no file", nil, password, models.ErrNoFile},
		{"empty password", file, "", models.ErrEmptyPassword},
		{"too long", file, strings.Repeat("a", 65), models.ErrPasswordTooLong},
		{"too long multibyte", file, strings.Repeat("é", 65), models.ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := storage.NewMemorySink()
			history := state.NewMockStore()
			o := newOrchestrator(t, testutil.TestConfig(), nil, sink, history)

			_, err := o.Submit(context.Background(), tt.file, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)

			st := o.State()
			assert.Equal(t, models.PhaseIdle, st.Phase)
			assert.Empty(t, st.Message)
			assert.Empty(t, sink.Writes())
			assert.Empty(t, history.Records())
			assert.Empty(t, drainEvents(o))
		})
	}
}

func TestSubmit_MaxLengthCountsCharacters(t *testing.T) {
	o := newOrchestrator(t, testutil.TestConfig(), nil, storage.NewMemorySink(), nil)

	// 64 characters, 128 bytes
	_, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), strings.Repeat("é", 64))
	assert.NoError(t, err)
}

func TestSubmit_Busy(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	blocking := testutil.NewBlockingFile("slow.txt", []byte("hello"))
	defer blocking.Release()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = o.Submit(context.Background(), blocking.SourceFile, password)
	}()

	select {
	case <-blocking.Opened():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never started reading")
	}

	st := o.State()
	assert.True(t, st.IsWorking())
	assert.Equal(t, models.StageReading, st.Stage)

	other := models.NewSourceFile("other.txt", []byte("x"))
	_, err := o.Submit(context.Background(), other, password)
	assert.ErrorIs(t, err, models.ErrPipelineBusy)
	assert.ErrorIs(t, o.SetInputs("a", "a"), models.ErrPipelineBusy)
	assert.ErrorIs(t, o.SelectFile(other), models.ErrPipelineBusy)

	blocking.Release()
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, []string{"slow.txt.enc"}, sink.Writes())
	assert.Equal(t, models.PhaseIdle, o.State().Phase)
}

func TestSubmit_ConcurrentCallersSingleWinner(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	blocking := testutil.NewBlockingFile("slow.txt", []byte("hello"))

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Submit(context.Background(), blocking.SourceFile, password)
			errs <- err
		}()
	}

	testutil.WaitForCondition(t, func() bool {
		return len(errs) == callers-1
	}, 5*time.Second, "losing callers to return")

	blocking.Release()
	wg.Wait()
	close(errs)

	var ok, busy int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrPipelineBusy):
			busy++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, busy)
	assert.Len(t, sink.Writes(), 1)
}

func TestSubmit_ResubmitAfterError(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)
	file := models.NewSourceFile("notes.txt", []byte("hello"))

	sink.FailWith(errors.New("disk full"))
	_, err := o.Submit(context.Background(), file, password)
	require.Error(t, err)
	assert.Contains(t, o.State().Message, "disk full")

	sink.FailWith(errors.New("quota exceeded"))
	_, err = o.Submit(context.Background(), o.State().ActiveFile, password)
	require.Error(t, err)

	st := o.State()
	assert.Equal(t, models.PhaseError, st.Phase)
	assert.Contains(t, st.Message, "quota exceeded")
	assert.NotContains(t, st.Message, "disk full")

	sink.FailWith(nil)
	_, err = o.Submit(context.Background(), st.ActiveFile, password)
	require.NoError(t, err)

	st = o.State()
	assert.Equal(t, models.PhaseIdle, st.Phase)
	assert.Empty(t, st.Message)
	assert.Nil(t, st.ActiveFile)
}

func TestSubmitForm(t *testing.T) {
	file := models.NewSourceFile("notes.txt", []byte("hello"))

	t.Run("clears inputs", func(t *testing.T) {
		o := newOrchestrator(t, testutil.TestConfig(), nil, storage.NewMemorySink(), nil)
		require.NoError(t, o.SelectFile(file))
		require.NoError(t, o.SetInputs(password, password))

		_, err := o.SubmitForm(context.Background(), false)
		require.NoError(t, err)

		st := o.State()
		assert.Empty(t, st.PasswordInput)
		assert.Empty(t, st.RetypeInput)
	})

	t.Run("clears inputs on failure", func(t *testing.T) {
		sink := storage.NewMemorySink()
		sink.FailWith(errors.New("disk full"))
		o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)
		require.NoError(t, o.SelectFile(file))
		require.NoError(t, o.SetInputs(password, password))

		_, err := o.SubmitForm(context.Background(), false)
		require.Error(t, err)

		st := o.State()
		assert.Empty(t, st.PasswordInput)
		assert.Empty(t, st.RetypeInput)
		assert.Same(t, file, st.ActiveFile)
	})

	t.Run("mismatch", func(t *testing.T) {
		sink := storage.NewMemorySink()
		o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)
		require.NoError(t, o.SelectFile(file))
		require.NoError(t, o.SetInputs(password, "different"))

		_, err := o.SubmitForm(context.Background(), false)
		assert.ErrorIs(t, err, models.ErrPasswordMismatch)

		st := o.State()
		assert.Equal(t, models.PhaseIdle, st.Phase)
		assert.Equal(t, password, st.PasswordInput)
		assert.Empty(t, sink.Writes())
	})

	t.Run("shown password skips retype", func(t *testing.T) {
		o := newOrchestrator(t, testutil.TestConfig(), nil, storage.NewMemorySink(), nil)
		require.NoError(t, o.SelectFile(file))
		require.NoError(t, o.SetInputs(password, ""))

		_, err := o.SubmitForm(context.Background(), true)
		assert.NoError(t, err)
	})

	t.Run("no file", func(t *testing.T) {
		o := newOrchestrator(t, testutil.TestConfig(), nil, storage.NewMemorySink(), nil)
		require.NoError(t, o.SetInputs(password, password))

		_, err := o.SubmitForm(context.Background(), false)
		assert.ErrorIs(t, err, models.ErrNoFile)
	})
}

func TestHistoryRecords(t *testing.T) {
	sink := storage.NewMemorySink()
	history := state.NewMockStore()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, history)
	file := models.NewSourceFile("notes.txt", []byte("hello"))

	ok, err := o.Submit(context.Background(), file, password)
	require.NoError(t, err)

	sink.FailWith(errors.New("disk full"))
	_, err = o.Submit(context.Background(), file, password)
	require.Error(t, err)

	records := history.Records()
	require.Len(t, records, 2)

	assert.Equal(t, ok.OperationID, records[0].ID)
	assert.Equal(t, state.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, "notes.txt", records[0].FileName)
	assert.Equal(t, int64(5), records[0].FileSize)
	assert.Equal(t, "notes.txt.enc", records[0].OutputName)
	assert.Equal(t, config.AlgorithmAESGCM, records[0].Algorithm)
	assert.Equal(t, config.HashSHA256, records[0].Hash)
	assert.Equal(t, 1000, records[0].Iterations)
	assert.Empty(t, records[0].ErrorCode)

	assert.Equal(t, state.OutcomeFailure, records[1].Outcome)
	assert.Equal(t, models.ErrCodeWrite, records[1].ErrorCode)
	assert.Contains(t, records[1].Error, "disk full")
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestHistoryFailureDoesNotFailEncryption(t *testing.T) {
	history := state.NewMockStore()
	history.FailWith(errors.New("database locked"))

	logs := testutil.NewLogOutput()
	cfg := testutil.TestConfig()
	provider, err := crypto.NewProvider(cfg, nil)
	require.NoError(t, err)
	c, err := codec.NewFromConfig(cfg)
	require.NoError(t, err)
	o := encrypt.New(cfg, provider, c, storage.NewMemorySink(), history, logs.Logger())

	_, err = o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseIdle, o.State().Phase)
	assert.True(t, logs.HasMessage("Failed to record history"))
	assert.False(t, logs.Contains(password), "password must never be logged")
}

func TestEvents(t *testing.T) {
	sink := storage.NewMemorySink()
	o := newOrchestrator(t, testutil.TestConfig(), nil, sink, nil)

	result, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.NoError(t, err)

	got := drainEvents(o)
	require.Len(t, got, 6)

	assert.Equal(t, encrypt.EventStarted, got[0].Type)
	stages := []models.Stage{models.StageReading, models.StageDeriving, models.StageEncrypting, models.StageWriting}
	for i, stage := range stages {
		assert.Equal(t, encrypt.EventStage, got[i+1].Type)
		assert.Equal(t, stage, got[i+1].Stage)
	}
	assert.Equal(t, encrypt.EventCompleted, got[5].Type)
	assert.True(t, got[5].Terminal())
	assert.Equal(t, "notes.txt.enc", got[5].Location)

	for _, e := range got {
		assert.Equal(t, result.OperationID, e.OperationID)
		assert.Equal(t, "notes.txt", e.File)
	}

	sink.FailWith(errors.New("disk full"))
	_, err = o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.Error(t, err)

	got = drainEvents(o)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, encrypt.EventFailed, last.Type)
	assert.ErrorIs(t, last.Error, models.ErrOutputWriteFailed)
}

func TestMockSink(t *testing.T) {
	sink := testutil.NewMockSink()
	sink.On("Write", mock.Anything, "notes.txt.enc", mock.MatchedBy(func(data []byte) bool {
		return len(data) == 5+16+16+12
	})).Return("/vault/notes.txt.enc", nil).Once()

	o := newOrchestrator(t, rawConfig(), nil, sink, nil)

	result, err := o.Submit(context.Background(), models.NewSourceFile("notes.txt", []byte("hello")), password)
	require.NoError(t, err)
	assert.Equal(t, "/vault/notes.txt.enc", result.Location)

	sink.AssertExpectations(t)
}

func TestScore(t *testing.T) {
	o := newOrchestrator(t, testutil.TestConfig(), nil, storage.NewMemorySink(), nil)

	assert.Zero(t, o.Score(""))
	assert.Greater(t, o.Score(password), o.Score("abc"))
}
