package session

import "time"

// stageState returns the current stage id and whether content owns the stage.
func (s *Session) stageState() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentStageID, s.contentDriven
}

// setStage installs a stage. The stage timer restarts only on an actual
// transition, so confirming the current stage keeps its elapsed time.
func (s *Session) setStage(stageID string, contentDriven bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentStageID != stageID {
		s.currentStageID = stageID
		s.stageEnteredAt = s.now()
	}
	s.contentDriven = contentDriven
}

// cooldownExpired reports whether an item may be checked again.
func (s *Session) cooldownExpired(itemID string, cooldown time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last, checked := s.lastChecked[itemID]
	return !checked || s.now().Sub(last) >= cooldown
}

// markChecked records that an item was just sent to the classifier.
func (s *Session) markChecked(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChecked[itemID] = s.now()
}

// evidenceOwner returns the item that already consumed a normalized quote.
func (s *Session) evidenceOwner(normalized string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, taken := s.seenEvidence[normalized]
	return owner, taken
}

// completeItem marks an item completed and claims its evidence. Returns false
// if the item was already completed; completion is monotonic except for a
// manual toggle.
func (s *Session) completeItem(itemID string, item CompletedItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.completed[itemID]; exists {
		return false
	}

	s.completed[itemID] = item
	if item.Evidence != "" {
		s.seenEvidence[normalizeEvidence(item.Evidence)] = itemID
	}
	return true
}

// toggleItem flips an item's completion state manually and returns the new
// state. Clearing releases the claimed evidence so the classifier may later
// re-complete the item with the same quote.
func (s *Session) toggleItem(itemID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.completed[itemID]; exists {
		delete(s.completed, itemID)
		if existing.Evidence != "" {
			delete(s.seenEvidence, normalizeEvidence(existing.Evidence))
		}
		// Restart the cooldown so the next cycle doesn't instantly undo
		// the coach's correction.
		s.lastChecked[itemID] = now
		return false
	}

	s.completed[itemID] = CompletedItem{
		Confidence:  1.0,
		Source:      SourceManual,
		CompletedAt: now,
	}
	return true
}

// setField installs an extracted field value unless one is already present.
// The first accepted value wins.
func (s *Session) setField(fieldID string, value FieldValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fields[fieldID]; exists {
		return false
	}
	s.fields[fieldID] = value
	return true
}

// overwriteField installs a field value unconditionally. Manual path only.
func (s *Session) overwriteField(fieldID string, value FieldValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[fieldID] = value
}

// clearField removes a field value. Manual path only.
func (s *Session) clearField(fieldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fields, fieldID)
}
