package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDecisions(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}
	if p.Attempts() != 3 {
		t.Fatalf("Attempts: want=3 got=%d", p.Attempts())
	}
	transient := &TransientError{Err: errors.New("boom")}
	auth := &AuthenticationError{Err: errors.New("no")}
	cases := []struct {
		attempt int
		err     error
		want    bool
	}{
		{1, transient, true},
		{2, transient, true},
		{3, transient, false},
		{1, auth, false},
		{1, nil, false},
	}
	for _, tc := range cases {
		if got := p.ShouldRetry(tc.attempt, tc.err); got != tc.want {
			t.Fatalf("ShouldRetry(%d, %v): want=%v got=%v", tc.attempt, tc.err, tc.want, got)
		}
	}
	if (RetryPolicy{MaxRetries: -1}).Attempts() != 1 {
		t.Fatalf("negative retries should still allow one attempt")
	}
}

func TestRetryDoExhausts(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}
	calls := 0
	var notified []int
	_, err := p.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", &TransientError{Err: errors.New("boom")}
	}, func(attempt int, err error, next time.Duration) {
		notified = append(notified, attempt)
		if next != time.Millisecond {
			t.Errorf("next: want=1ms got=%v", next)
		}
	})
	if !IsTransient(err) {
		t.Fatalf("want TransientError got=%v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("notify: want=[1 2] got=%v", notified)
	}
}

func TestRetryDoRecovers(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}
	calls := 0
	out, err := p.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &TransientError{Err: errors.New("boom")}
		}
		return "report", nil
	}, nil)
	if err != nil || out != "report" {
		t.Fatalf("Do: want=report,nil got=%q,%v", out, err)
	}
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestRetryDoStopsOnAuth(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, Delay: time.Millisecond}
	calls := 0
	_, err := p.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", &AuthenticationError{Err: errors.New("401")}
	}, nil)
	if !IsAuthentication(err) {
		t.Fatalf("want AuthenticationError got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestRetryDoAttemptTimeout(t *testing.T) {
	p := RetryPolicy{MaxRetries: 0, AttemptTimeout: 10 * time.Millisecond}
	_, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", Classify(ctx.Err())
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded got=%v", err)
	}
}
