// Package tracker is the local-first quest engine that runs on the client.
//
// It owns three pieces of durable state, each under its own storage key and
// each written by exactly one component:
//
//	agri_profile       ProfileStore    identity, points, claimed quests, pending ops
//	agriassist_events  EventLog        bounded telemetry log
//	agri_quests_state  QuestController manual step toggles
//
// Every mutation applies locally first. Talking to the remote authority is
// delegated to a SyncTrigger (see package workers) and to an EvidenceAPI, so
// the engine stays usable with no network at all.
package tracker
