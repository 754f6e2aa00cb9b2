package core

import "github.com/vovakirdan/wireplan-server/internal/utils"

// opaqueKeys issues random keys that are only meaningful to the registry's digest index.
type opaqueKeys struct{}

func (opaqueKeys) Issue(ParticipantID, string) (string, error) {
	return utils.NewRecoveryKey(), nil
}

func (opaqueKeys) Verify(string) (ParticipantID, error) {
	return "", nil
}
