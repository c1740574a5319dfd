package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/store"
)

const playlistsKey = "playlists_json"

func (s *Server) handleStorageGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	engine.IncrStorageRead()

	value, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Storage read failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(value)
}

type storageWriteReq struct {
	Key      string          `json:"key"`
	EntryKey string          `json:"entryKey,omitempty"`
	Value    json.RawMessage `json:"value"`
}

func decodeStorageReq(w http.ResponseWriter, r *http.Request) (storageWriteReq, bool) {
	var req storageWriteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return req, false
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "No key provided")
		return req, false
	}
	return req, true
}

func (s *Server) handleStorageSet(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStorageReq(w, r)
	if !ok {
		return
	}
	engine.IncrStorageWrite()
	if err := s.store.Set(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Storage write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStorageAppendArray(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStorageReq(w, r)
	if !ok {
		return
	}
	engine.IncrStorageWrite()
	if err := s.store.AppendArray(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Storage write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStorageAppendMap(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStorageReq(w, r)
	if !ok {
		return
	}
	if req.EntryKey == "" {
		writeError(w, http.StatusBadRequest, "No entryKey provided")
		return
	}
	engine.IncrStorageWrite()
	if err := s.store.AppendMap(r.Context(), req.Key, req.EntryKey, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Storage write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type playlistUpdateReq struct {
	PlaylistID string          `json:"playlistId"`
	Field      string          `json:"field"`
	Value      json.RawMessage `json:"value"`
}

// isJSONObjectOrArray reports whether raw starts a JSON object or array,
// mirroring the loose "must be an object" input check of the playlist API.
func isJSONObjectOrArray(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

func (s *Server) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	var req playlistUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.PlaylistID == "" || req.Field == "" || !isJSONObjectOrArray(req.Value) {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	engine.IncrStorageRead()
	playlists := map[string]json.RawMessage{}
	if raw, err := s.store.Get(r.Context(), playlistsKey); err == nil {
		if err := json.Unmarshal(raw, &playlists); err != nil {
			playlists = map[string]json.RawMessage{}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Storage read failed")
		return
	}

	rawPlaylist, ok := playlists[req.PlaylistID]
	if !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	playlist := map[string]json.RawMessage{}
	if err := json.Unmarshal(rawPlaylist, &playlist); err != nil {
		playlist = map[string]json.RawMessage{}
	}

	// Non-array field values are replaced by a fresh array before the push.
	var fieldItems []json.RawMessage
	if existing, ok := playlist[req.Field]; ok {
		if err := json.Unmarshal(existing, &fieldItems); err != nil {
			fieldItems = nil
		}
	}
	fieldItems = append(fieldItems, req.Value)

	updatedField, _ := json.Marshal(fieldItems)
	playlist[req.Field] = updatedField
	updatedPlaylist, _ := json.Marshal(playlist)

	engine.IncrStorageWrite()
	if err := s.store.AppendMap(r.Context(), playlistsKey, req.PlaylistID, updatedPlaylist); err != nil {
		writeError(w, http.StatusInternalServerError, "Storage write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"updatedPlaylist": json.RawMessage(updatedPlaylist),
	})
}
