package domain

// DedupePartnerIDs removes duplicate and nil partner ids, preserving the
// first occurrence order. Membership operations are idempotent unions, so
// callers dedupe before touching the store.
func DedupePartnerIDs(ids []PartnerID) []PartnerID {
	if len(ids) == 0 {
		return ids
	}

	seen := make(map[PartnerID]struct{}, len(ids))
	result := make([]PartnerID, 0, len(ids))

	for _, id := range ids {
		if id.IsNil() {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}

	return result
}
