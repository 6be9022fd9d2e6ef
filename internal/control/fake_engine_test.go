package control

import (
	"sync"

	"github.com/dnstrustd/dnstrustd/internal/state"
)

// fakeEngine is a test double for Engine that records every call it receives.
type fakeEngine struct {
	mu sync.Mutex

	submitted      []string
	reprobes       int
	skipHTTPCalls  int
	hotspotSignons int
	insecureYes    int
	insecureNo     int
	testTCP        int
	testSSL        int
	testHTTP       int
	unsafeCalls    int
	testUpdate     int
	updateOkCalls  int
	updateCancel   int
	reasserts      int

	snap state.Snapshot
}

func (f *fakeEngine) Submit(cacheAddrs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append([]string{}, cacheAddrs...)
}

func (f *fakeEngine) Reprobe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reprobes++
}

func (f *fakeEngine) SkipHTTP() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipHTTPCalls++
}

func (f *fakeEngine) HotspotSignon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotspotSignons++
}

func (f *fakeEngine) InsecureYes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insecureYes++
}

func (f *fakeEngine) InsecureNo() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insecureNo++
}

func (f *fakeEngine) TestTCP() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testTCP++
}

func (f *fakeEngine) TestSSL() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testSSL++
}

func (f *fakeEngine) TestHTTP() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testHTTP++
}

func (f *fakeEngine) Unsafe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsafeCalls++
}

func (f *fakeEngine) TestUpdate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testUpdate++
}

func (f *fakeEngine) UpdateOk() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateOkCalls++
}

func (f *fakeEngine) UpdateCancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCancel++
}

func (f *fakeEngine) ReassertLoopback() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasserts++
}

func (f *fakeEngine) reassertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reasserts
}

func (f *fakeEngine) Snapshot() state.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeEngine) counts() (reprobes, skipHTTP, hotspot, insYes, insNo int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reprobes, f.skipHTTPCalls, f.hotspotSignons, f.insecureYes, f.insecureNo
}

var _ Engine = (*fakeEngine)(nil)
