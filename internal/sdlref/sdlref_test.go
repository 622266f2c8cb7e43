package sdlref

import (
	"errors"
	"testing"
)

func stub(t *testing.T, initErr error) (inits, quits *int) {
	t.Helper()
	var i, q int
	oldInit, oldQuit := initFn, quitFn
	initFn = func() error {
		i++
		return initErr
	}
	quitFn = func() { q++ }
	t.Cleanup(func() {
		initFn, quitFn = oldInit, oldQuit
		mu.Lock()
		count = 0
		mu.Unlock()
	})
	return &i, &q
}

func TestAcquireRelease(t *testing.T) {
	inits, quits := stub(t, nil)

	for i := 0; i < 3; i++ {
		if err := Acquire(); err != nil {
			t.Fatalf("Acquire() = %v", err)
		}
	}
	if *inits != 1 {
		t.Errorf("init calls = %d, want 1", *inits)
	}
	if Count() != 3 {
		t.Errorf("Count() = %d, want 3", Count())
	}

	Release()
	Release()
	if *quits != 0 {
		t.Errorf("quit called with references left")
	}
	Release()
	if *quits != 1 {
		t.Errorf("quit calls = %d, want 1", *quits)
	}

	// Extra releases are ignored.
	Release()
	if *quits != 1 || Count() != 0 {
		t.Errorf("extra Release changed state: quits=%d count=%d", *quits, Count())
	}

	if err := Acquire(); err != nil {
		t.Fatal(err)
	}
	if *inits != 2 {
		t.Errorf("re-init calls = %d, want 2", *inits)
	}
	Release()
}

func TestAcquireFailure(t *testing.T) {
	_, quits := stub(t, errors.New("no display"))

	if err := Acquire(); err == nil {
		t.Fatal("Acquire() = nil, want error")
	}
	if Count() != 0 {
		t.Errorf("Count() = %d after failed init, want 0", Count())
	}
	Release()
	if *quits != 0 {
		t.Error("Release after failed Acquire called quit")
	}
}
