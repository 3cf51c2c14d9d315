package lock

import "testing"

func TestAcquireExcludesSecondInstance(t *testing.T) {
	dir := t.TempDir()

	fl, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer fl.Unlock()

	if _, err := Acquire(dir); err == nil {
		t.Fatal("second acquire must fail while the lock is held")
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	fl, err := Acquire(dir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	fl2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	fl2.Unlock()
}
