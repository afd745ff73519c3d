package storage

import (
	"encoding/json"
	"errors"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeRun(data []byte) (Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, err
	}
	return run, checkVersion(run.VersionedRecord)
}

func decodeGeneration(data []byte) (GenerationRecord, error) {
	var rec GenerationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return GenerationRecord{}, err
	}
	return rec, checkVersion(rec.VersionedRecord)
}

func decodeChampion(data []byte) (Champion, error) {
	var c Champion
	if err := json.Unmarshal(data, &c); err != nil {
		return Champion{}, err
	}
	return c, checkVersion(c.VersionedRecord)
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
