package domain

// Text marshalling so typed IDs render as canonical UUID strings in JSON
// payloads (receipts, outbox intents, audit exports) instead of byte arrays.

func (i OrgID) MarshalText() ([]byte, error)      { return []byte(i.String()), nil }
func (i ActorID) MarshalText() ([]byte, error)    { return []byte(i.String()), nil }
func (i EntityID) MarshalText() ([]byte, error)   { return []byte(i.String()), nil }
func (i MutationID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }
func (i BatchID) MarshalText() ([]byte, error)    { return []byte(i.String()), nil }

func (i *OrgID) UnmarshalText(text []byte) error {
	parsed, err := ParseOrgID(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i *ActorID) UnmarshalText(text []byte) error {
	parsed, err := ParseActorID(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i *MutationID) UnmarshalText(text []byte) error {
	parsed, err := ParseMutationID(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i *BatchID) UnmarshalText(text []byte) error {
	parsed, err := ParseBatchID(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
