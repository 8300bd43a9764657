package notify

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestChannel_ShowAndExpire(t *testing.T) {
	t.Parallel()

	ch := New(20*time.Millisecond, nil)
	t.Cleanup(ch.Close)

	ch.Error("上传失败")
	n, ok := ch.Current()
	if !ok {
		t.Fatalf("notification should be visible")
	}
	if n.Message != "上传失败" || n.Level != LevelError {
		t.Fatalf("unexpected notification: %+v", n)
	}

	waitFor(t, time.Second, func() bool {
		_, ok := ch.Current()
		return !ok
	})
}

func TestChannel_NewMessagePreemptsOld(t *testing.T) {
	t.Parallel()

	ch := New(100*time.Millisecond, nil)
	t.Cleanup(ch.Close)

	ch.Info("first")
	time.Sleep(60 * time.Millisecond)
	ch.Success("second")

	// first 的定时器到期后不应清除 second
	time.Sleep(50 * time.Millisecond)
	n, ok := ch.Current()
	if !ok {
		t.Fatalf("second notification removed by stale timer")
	}
	if n.Message != "second" || n.Level != LevelSuccess {
		t.Fatalf("unexpected notification: %+v", n)
	}

	waitFor(t, time.Second, func() bool {
		_, ok := ch.Current()
		return !ok
	})
}

func TestChannel_DefaultDuration(t *testing.T) {
	t.Parallel()

	ch := New(0, nil)
	t.Cleanup(ch.Close)
	if ch.duration != DefaultDuration {
		t.Fatalf("duration = %s, want %s", ch.duration, DefaultDuration)
	}
}

func TestChannel_StaleExpireIgnored(t *testing.T) {
	t.Parallel()

	ch := New(time.Hour, nil)
	t.Cleanup(ch.Close)

	ch.Info("first")
	stale := ch.seq
	ch.Info("second")

	ch.expire(stale)
	if n, ok := ch.Current(); !ok || n.Message != "second" {
		t.Fatalf("stale expiry removed current notification: %+v %v", n, ok)
	}

	ch.expire(ch.seq)
	if _, ok := ch.Current(); ok {
		t.Fatalf("current expiry should remove notification")
	}
}
