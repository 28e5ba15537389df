package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

const recordExt = ".tdb"

var ErrRecordNotFound = errors.New("battle record not found")

// BattleStore хранит записанные битвы по паре (атакующий, защитник), по файлу на пару.
type BattleStore struct {
	SaveDir string
}

func NewBattleStore(dir string) (*BattleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &BattleStore{SaveDir: dir}, nil
}

// escapeName кодирует имя для файла. '_' тоже кодируется: "__" разделяет пару.
func escapeName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), "_", "%5F")
}

func (s *BattleStore) path(attacker, defender string) string {
	name := escapeName(attacker) + "__" + escapeName(defender) + recordExt
	return filepath.Join(s.SaveDir, name)
}

// Save пишет запись во временный файл и атомарно подменяет старую.
func (s *BattleStore) Save(rec *Record) error {
	path := s.path(rec.Battle.AttackerName, rec.Battle.DefenderName)

	f, err := os.CreateTemp(s.SaveDir, ".tmp-*"+recordExt)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // после успешного Rename файла уже нет

	bw := bufio.NewWriter(f)
	if err := writeBinary(bw, rec); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	logger.WithComponent("storage").WithFields(logrus.Fields{
		"attacker": rec.Battle.AttackerName,
		"defender": rec.Battle.DefenderName,
		"events":   len(rec.Battle.Events),
	}).Debug("Battle record saved")
	return nil
}

func (s *BattleStore) Load(attacker, defender string) (*Record, error) {
	f, err := os.Open(s.path(attacker, defender))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s vs %s", ErrRecordNotFound, attacker, defender)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readBinary(bufio.NewReader(f))
}

// Delete удаляет запись. Отсутствие записи не ошибка.
func (s *BattleStore) Delete(attacker, defender string) error {
	err := os.Remove(s.path(attacker, defender))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Pair - атакующий и защитник сохраненной битвы.
type Pair struct {
	Attacker string `json:"attacker"`
	Defender string `json:"defender"`
}

// List возвращает пары всех сохраненных битв.
func (s *BattleStore) List() ([]Pair, error) {
	entries, err := os.ReadDir(s.SaveDir)
	if err != nil {
		return nil, err
	}
	var out []Pair
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		attacker, defender, ok := strings.Cut(strings.TrimSuffix(name, recordExt), "__")
		if !ok {
			continue
		}
		a, errA := url.PathUnescape(attacker)
		d, errD := url.PathUnescape(defender)
		if errA != nil || errD != nil {
			continue
		}
		out = append(out, Pair{Attacker: a, Defender: d})
	}
	return out, nil
}
