package main

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/courtside/camstatus-go/pkg/wire"
)

// facilities the simulated cameras are spread over.
var facilities = []string{"Riverside Club", "Northgate Arena", "Harbor Courts"}

// Fleet is a set of simulated cameras whose status drifts over time.
type Fleet struct {
	clock clockwork.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	cameras []wire.CameraSnapshot
}

// NewFleet creates n cameras, all ACTIVE. The same seed yields the same
// sequence of changes. A nil clock uses the real clock.
func NewFleet(n int, seed uint64, clock clockwork.Clock) *Fleet {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cameras := make([]wire.CameraSnapshot, n)
	for i := range cameras {
		court := i%4 + 1
		facility := i / 4 % len(facilities)
		cameras[i] = wire.CameraSnapshot{
			ID:        wire.CameraID(fmt.Sprintf("%d", i+1)),
			Name:      fmt.Sprintf("Court %d Cam", court),
			Status:    wire.CameraActive,
			IPAddress: fmt.Sprintf("10.20.%d.%d", facility, 10+i),
			Location: wire.Location{
				CourtID:      int64(court),
				CourtName:    fmt.Sprintf("Court %d", court),
				FacilityID:   int64(facility + 1),
				FacilityName: facilities[facility],
			},
		}
	}
	return &Fleet{
		clock:   clock,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cameras: cameras,
	}
}

// Snapshots returns the current state of every camera.
func (f *Fleet) Snapshots() []wire.CameraSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.CameraSnapshot(nil), f.cameras...)
}

// Step moves one random camera to a different status and returns the
// notification and the camera's new snapshot.
func (f *Fleet) Step() (wire.StatusNotification, wire.CameraSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.rng.IntN(len(f.cameras))
	cam := &f.cameras[i]
	old := cam.Status
	cam.Status = f.nextStatus(old)

	return wire.StatusNotification{
		CameraID:   cam.ID,
		CameraName: cam.Name,
		OldStatus:  old,
		NewStatus:  cam.Status,
		Timestamp:  f.clock.Now(),
	}, *cam
}

// nextStatus favors returning to ACTIVE so the fleet stays mostly healthy.
func (f *Fleet) nextStatus(current wire.CameraStatus) wire.CameraStatus {
	if current != wire.CameraActive && f.rng.IntN(3) > 0 {
		return wire.CameraActive
	}
	for {
		all := wire.AllCameraStatuses()
		next := all[f.rng.IntN(len(all))]
		if next != current {
			return next
		}
	}
}
