package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

// BattleInput - все, что нужно для повторного расчета битвы.
type BattleInput struct {
	Battleground domain.Battleground `json:"battleground"`
	Wave         domain.Wave         `json:"wave"`
}

func ReadInput(r io.Reader) (*BattleInput, error) {
	var in BattleInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode battle input: %w", err)
	}
	return &in, nil
}

func LoadInput(path string) (*BattleInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadInput(f)
}

func WriteInput(w io.Writer, in *BattleInput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}
