// Package medication is the medication state machine and scheduling engine.
//
// Architecture:
//
//	 tag scan ──▶ Service.TagScanned ──▶ Dispatcher (queue, 1 worker) ─┐
//	 API / MQTT ─▶ Service.RecordDose / UpdateInventory ───────────────┤
//	 Scheduler ─▶ Manager.ScheduleCheck / DailyReset ──────────────────┤
//	                                                                   ▼
//	                                  Manager (one lock per entry) ──▶ Registry
//	                                        │
//	                                        ├─▶ Notifier  (reminders, confirmations)
//	                                        ├─▶ Publisher (medication_updated, status_reset)
//	                                        └─▶ Store     (runtime state, dose history)
//
// # Key Types
//
//   - Medication, Person: the entity model; Status is derived from dose counts
//   - Registry: built from one config entry; resolves IDs and NFC tags
//   - Manager: per-entry context object that serialises all mutations
//   - Scheduler: drives the 5-minute schedule check and the daily reset
//   - Dispatcher: queue that turns tag scans into dose records off the caller's stack
//   - Service: routes typed requests to the owning Manager
//   - TagLearner: cancellable "wait for the next scan" sessions for setup
//
// # Thread Safety
//
// Manager, Service, Dispatcher, Scheduler and TagLearner are safe for
// concurrent use. A Registry is read-only after Build.
//
// # Usage
//
//	reg, errs := medication.Build(entryCfg, log)
//	mgr := medication.NewManager(reg, medication.ManagerOptions{Notifier: n, Publisher: p})
//	svc := medication.NewService([]*medication.Manager{mgr}, medication.ServiceOptions{})
//	svc.Start(ctx)
//	defer svc.Close()
//
//	sched := medication.NewScheduler(cfg.Scheduler, svc.Sweepers()...)
//	sched.Start(ctx)
//	defer sched.Stop()
package medication
