package notify

// Occupant is an identity currently present in the watched voice channel.
// IDs are unique within a snapshot; display names are not assumed stable.
type Occupant struct {
	ID          string
	DisplayName string
}

// dedupeByID removes duplicate occupants, keeping the last occurrence of
// each id while preserving order. Pending joins can contain the same user
// twice when voice states are re-delivered.
func dedupeByID(occupants []Occupant) []Occupant {
	if len(occupants) < 2 {
		return occupants
	}
	last := make(map[string]int, len(occupants))
	for i, o := range occupants {
		last[o.ID] = i
	}
	out := make([]Occupant, 0, len(last))
	for i, o := range occupants {
		if last[o.ID] == i {
			out = append(out, o)
		}
	}
	return out
}

func copySnapshot(occupants []Occupant) []Occupant {
	if len(occupants) == 0 {
		return nil
	}
	out := make([]Occupant, len(occupants))
	copy(out, occupants)
	return out
}
