package tracker

// Storage keys.
const (
	ProfileKey    = "agri_profile"
	EventsKey     = "agriassist_events"
	QuestStateKey = "agri_quests_state"
)

// KeyValueStore is the durable key→JSON-string mapping the engine persists
// into. storage.LocalStore is the production implementation.
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// ClearLocalState removes every key the engine owns (sign-out).
func ClearLocalState(kv KeyValueStore) error {
	for _, key := range []string{ProfileKey, EventsKey, QuestStateKey} {
		if err := kv.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
