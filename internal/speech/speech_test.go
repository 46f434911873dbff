package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kiosk/internal/models"
)

// fakePlayer records playback and fails the test on overlapping utterances
type fakePlayer struct {
	mu      sync.Mutex
	active  int
	overlap bool
	played  []string
	hold    time.Duration
}

func (p *fakePlayer) Play(ctx context.Context, audio AudioHandle) error {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.hold):
	}

	p.mu.Lock()
	p.played = append(p.played, audio.URL)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) snapshot() ([]string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...), p.overlap
}

var echoSynth = SynthesizerFunc(func(_ context.Context, text string) (AudioHandle, error) {
	return AudioHandle{URL: text}, nil
})

func TestSpeakerQueueModePlaysInOrder(t *testing.T) {
	player := &fakePlayer{hold: 20 * time.Millisecond}
	s := NewSpeaker(echoSynth, player, WithMode(ModeQueue))
	defer s.Close()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.Say(text))
	}

	require.Eventually(t, func() bool {
		played, _ := player.snapshot()
		return len(played) == 3
	}, 2*time.Second, 10*time.Millisecond)

	played, overlap := player.snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, played)
	assert.False(t, overlap)
}

func TestSpeakerReplaceModeKeepsLatest(t *testing.T) {
	player := &fakePlayer{hold: 200 * time.Millisecond}
	s := NewSpeaker(echoSynth, player, WithMode(ModeReplace))
	defer s.Close()

	require.NoError(t, s.Say("first"))
	require.Eventually(t, s.Speaking, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Say("second"))
	require.NoError(t, s.Say("third"))

	require.Eventually(t, func() bool {
		played, _ := player.snapshot()
		return len(played) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	played, overlap := player.snapshot()
	assert.Equal(t, []string{"third"}, played)
	assert.False(t, overlap)
}

func TestSpeakerStop(t *testing.T) {
	player := &fakePlayer{hold: time.Second}
	s := NewSpeaker(echoSynth, player, WithMode(ModeQueue))
	defer s.Close()

	require.NoError(t, s.Say("long"))
	require.NoError(t, s.Say("pending"))
	require.Eventually(t, s.Speaking, time.Second, 5*time.Millisecond)

	s.Stop()
	require.Eventually(t, func() bool { return !s.Speaking() }, time.Second, 5*time.Millisecond)
	played, _ := player.snapshot()
	assert.Empty(t, played)
}

func TestSpeakerUnavailable(t *testing.T) {
	s := NewSpeaker(nil, nil)
	defer s.Close()

	assert.False(t, s.Available())
	assert.ErrorIs(t, s.Say("hello"), ErrSpeechUnavailable)
}

func TestSpeakerSurvivesSynthesisFailure(t *testing.T) {
	var calls atomic.Int32
	synth := SynthesizerFunc(func(_ context.Context, text string) (AudioHandle, error) {
		if calls.Add(1) == 1 {
			return AudioHandle{}, ErrSpeechUnavailable
		}
		return AudioHandle{URL: text}, nil
	})
	player := &fakePlayer{}
	s := NewSpeaker(synth, player, WithMode(ModeQueue))
	defer s.Close()

	require.NoError(t, s.Say("lost"))
	require.NoError(t, s.Say("kept"))

	require.Eventually(t, func() bool {
		played, _ := player.snapshot()
		return len(played) == 1
	}, time.Second, 5*time.Millisecond)
	played, _ := player.snapshot()
	assert.Equal(t, []string{"kept"}, played)
}

func TestSpeakerClosed(t *testing.T) {
	s := NewSpeaker(echoSynth, &fakePlayer{})
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Say("late"), ErrSpeechUnavailable)
}

func TestListenerReportsStartAndEnd(t *testing.T) {
	tests := []struct {
		name    string
		rec     Recognizer
		want    string
		wantErr error
	}{
		{"transcript", RecognizerFunc(func(context.Context) (string, error) { return " 我要紅茶 ", nil }), "我要紅茶", nil},
		{"silence", RecognizerFunc(func(context.Context) (string, error) { return "", nil }), "", ErrNoSpeech},
		{"denied", RecognizerFunc(func(context.Context) (string, error) {
			return "", &RecognitionError{Code: CodeDenied}
		}), "", ErrDenied},
		{"unsupported", Unsupported{}, "", ErrNotSupported},
		{"other failure", RecognizerFunc(func(context.Context) (string, error) { return "", errors.New("device busy") }), "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewListener(tt.rec)
			var starts, ends int
			var endErr error
			l.OnStart(func() { starts++ })
			l.OnEnd(func(err error) {
				ends++
				endErr = err
			})

			text, err := l.Listen(context.Background())
			assert.Equal(t, tt.want, text)
			assert.Equal(t, 1, starts)
			assert.Equal(t, 1, ends)
			assert.Equal(t, err, endErr)
			assert.False(t, l.Listening())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.name == "other failure" {
				assert.Error(t, err)
			}
		})
	}
}

func TestListenerTimeout(t *testing.T) {
	// ignores ctx on purpose
	stuck := RecognizerFunc(func(context.Context) (string, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})
	l := NewListener(stuck, WithTimeout(20*time.Millisecond))

	var endErr error
	l.OnEnd(func(err error) { endErr = err })

	start := time.Now()
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, endErr, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "我沒有聽到您的語音，請再試一次。", UserMessage(err))
}

func TestListenerRejectsSecondListen(t *testing.T) {
	release := make(chan struct{})
	rec := RecognizerFunc(func(ctx context.Context) (string, error) {
		<-release
		return "紅茶", nil
	})
	l := NewListener(rec)

	var starts, ends atomic.Int32
	l.OnStart(func() { starts.Add(1) })
	l.OnEnd(func(error) { ends.Add(1) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.Listen(context.Background())
	}()
	require.Eventually(t, l.Listening, time.Second, 5*time.Millisecond)

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrListening)
	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, int32(0), ends.Load())
	assert.True(t, l.Listening())

	close(release)
	<-done
	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, int32(1), ends.Load())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "我沒有聽到您的語音，請再試一次。", UserMessage(ErrNoSpeech))
	assert.Equal(t, "語音識別出錯，請嘗試使用文字輸入。", UserMessage(&RecognitionError{Code: CodeDenied}))
	assert.Equal(t, "語音識別出錯，請嘗試使用文字輸入。", UserMessage(ErrSpeechUnavailable))
}

// MockSpeechBackend is a mock implementation of SpeechBackend
type MockSpeechBackend struct {
	mock.Mock
}

func (m *MockSpeechBackend) SynthesizeSpeech(ctx context.Context, text, style string) (models.SpeechResponse, error) {
	args := m.Called(ctx, text, style)
	return args.Get(0).(models.SpeechResponse), args.Error(1)
}

func TestCloudSynthesizer(t *testing.T) {
	backend := new(MockSpeechBackend)
	backend.On("SynthesizeSpeech", mock.Anything, "您好", "female_warm").
		Return(models.SpeechResponse{Success: true, AudioURL: "/temp_audio/abc.mp3"}, nil)
	backend.On("SynthesizeSpeech", mock.Anything, "壞掉", "female_warm").
		Return(models.SpeechResponse{Success: false, Error: "quota exceeded"}, nil)

	synth, err := NewCloudSynthesizer(backend, "female_warm", "http://kiosk.local:8080")
	require.NoError(t, err)

	audio, err := synth.Synthesize(context.Background(), "您好")
	require.NoError(t, err)
	assert.Equal(t, "http://kiosk.local:8080/temp_audio/abc.mp3", audio.URL)

	_, err = synth.Synthesize(context.Background(), "壞掉")
	assert.ErrorIs(t, err, ErrSpeechUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCommandConstructorsRequireArgs(t *testing.T) {
	_, err := NewCommandPlayer(nil)
	assert.ErrorIs(t, err, ErrSpeechUnavailable)
	_, err = NewCommandRecognizer(nil)
	assert.ErrorIs(t, err, ErrSpeechUnavailable)
}

func TestCommandRecognizerMissingBinary(t *testing.T) {
	rec, err := NewCommandRecognizer([]string{"kiosk-no-such-capture-binary"})
	require.NoError(t, err)

	_, err = rec.Recognize(context.Background())
	assert.ErrorIs(t, err, ErrNotSupported)
}
