package handler

import "context"

// fakeRunner records invocations instead of shelling out, so handler tests
// can assert Extract builds the right command without requiring tar,
// unzip, unar, or gzip to be installed in the test environment.
type fakeRunner struct {
	runCalls       [][]string
	runToFileCalls [][]string
	err            error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.runCalls = append(f.runCalls, append([]string{name}, args...))

	return f.err
}

func (f *fakeRunner) RunToFile(_ context.Context, outPath string, name string, args ...string) error {
	f.runToFileCalls = append(f.runToFileCalls, append([]string{outPath, name}, args...))

	return f.err
}
