// Package deathchest stores the items of dying players in timed chests for
// Dragonfly servers.
//
// When a player dies, their items are put into a chest at the place of death.
// The chest optionally falls from the sky first and shows a floating countdown
// once placed. When the countdown ends, or when a player breaks it early, the
// chest breaks and drops its contents.
//
// # Quick Start
//
//	settings, err := deathchest.LoadSettings("config.yml", nil, log)
//	if err != nil {
//	    return err
//	}
//	sched := deathchest.NewTickScheduler(log)
//	sched.Start(ctx)
//
//	mngr, err := deathchest.NewBuilder().
//	    World(worlds).
//	    Scheduler(sched).
//	    Settings(settings).
//	    Holograms(worlds).
//	    Broadcaster(players).
//	    Capabilities(deathchest.DetectCapabilities(protocol.CurrentVersion)).
//	    Init()
//
// The df package provides the Dragonfly implementations of World,
// HologramBackend and Broadcaster, and the player handler that creates chests.
//
// # Locations
//
// Every chest is identified by a LocationKey: the world name and the block
// position. At most one chest, placed or falling, exists per key.
//
// # Threading
//
// All scheduled work runs on the scheduler's tick goroutine, one task at a
// time. Create, RequestBreak and the lookups may be called from any goroutine.
// Break changes the world and should only be called on the tick goroutine.
//
// # Shutdown
//
// Manager.Shutdown breaks every placed chest, aborts falling chests and leaves
// no tasks or holograms behind. Call it before stopping the scheduler.
package deathchest
