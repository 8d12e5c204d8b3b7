package assets

import "sync"

// SaveListener is called after an Asset has been persisted along with its
// relations. The external map sync subscribes here, which keeps third-party
// syncing out of the persistence path itself.
type SaveListener func(a *Asset)

var (
	listenersMu   sync.Mutex
	saveListeners []SaveListener
)

func OnAssetSaved(fn SaveListener) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	saveListeners = append(saveListeners, fn)
}

// NotifyAssetSaved runs every registered listener. Callers invoke it after a
// successful commit only.
func NotifyAssetSaved(a *Asset) {
	listenersMu.Lock()
	fns := make([]SaveListener, len(saveListeners))
	copy(fns, saveListeners)
	listenersMu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}
