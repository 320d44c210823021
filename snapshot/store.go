package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/clusterec/core"
)

// 磁盘布局：
//   transactions.snapshot / features.snapshot               canonical 对，每次训练整体覆盖
//   transactions_<ts>.snapshot / features_<ts>.snapshot     带时间戳的备份对
// 每个文件都先写临时文件再 rename，读取方不会看到半写状态。
const (
	canonicalTransactions = "transactions.snapshot"
	canonicalFeatures     = "features.snapshot"
	backupPrefix          = "transactions_"
	backupFeaturesPrefix  = "features_"
	snapshotExt           = ".snapshot"
)

// transactionsFile / featuresFile 是快照两半的磁盘封装。
// Version 字段用于加载时确认两半来自同一次训练。
type transactionsFile struct {
	Version      string                `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	Transactions core.TransactionTable `json:"transactions"`
}

type featuresFile struct {
	Version   string             `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	Features  *core.FeatureTable `json:"features"`
}

// FileStore 是文件系统实现的快照存储，独占管理 Dir 下的所有快照文件。
type FileStore struct {
	Dir  string
	Keep int // 保留的备份对数量，默认 1
}

// NewFileStore 创建快照存储，目录不存在时自动创建。
func NewFileStore(dir string, keep int) (*FileStore, error) {
	if keep <= 0 {
		keep = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{Dir: dir, Keep: keep}, nil
}

// Save 持久化快照：canonical 对 + 备份对，随后清理过期备份。
// 两半并发写入；任一写入失败即整体失败，不会只留半个 canonical。
func (s *FileStore) Save(snap *core.ModelSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	version := snap.Version()

	txData, err := json.Marshal(&transactionsFile{
		Version:      version,
		CreatedAt:    snap.CreatedAt,
		Transactions: snap.Transactions,
	})
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}
	ftData, err := json.Marshal(&featuresFile{
		Version:   version,
		CreatedAt: snap.CreatedAt,
		Features:  snap.Features,
	})
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error { return s.writeAtomic(canonicalTransactions, txData) })
	eg.Go(func() error { return s.writeAtomic(canonicalFeatures, ftData) })
	eg.Go(func() error {
		return s.writeAtomic(backupPrefix+version+snapshotExt, txData)
	})
	eg.Go(func() error {
		return s.writeAtomic(backupFeaturesPrefix+version+snapshotExt, ftData)
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	return s.Cleanup()
}

// Load 读取 canonical 快照对。
// 任一文件缺失返回 NOT_FOUND；解析失败、形状校验失败或两半版本不一致
// 返回 CORRUPT_MODEL，调用方（Registry）据此保留旧快照。
func (s *FileStore) Load() (*core.ModelSnapshot, error) {
	txData, err := os.ReadFile(filepath.Join(s.Dir, canonicalTransactions))
	if err != nil {
		return nil, notFoundOr(err)
	}
	ftData, err := os.ReadFile(filepath.Join(s.Dir, canonicalFeatures))
	if err != nil {
		return nil, notFoundOr(err)
	}

	var txFile transactionsFile
	if err := json.Unmarshal(txData, &txFile); err != nil {
		return nil, corrupt("transactions: " + err.Error())
	}
	var ftFile featuresFile
	if err := json.Unmarshal(ftData, &ftFile); err != nil {
		return nil, corrupt("features: " + err.Error())
	}
	if txFile.Version != ftFile.Version {
		return nil, corrupt(fmt.Sprintf("version mismatch: transactions=%s features=%s",
			txFile.Version, ftFile.Version))
	}
	if ftFile.Features == nil {
		return nil, corrupt("features: missing table")
	}
	ftFile.Features.Reindex()

	snap := &core.ModelSnapshot{
		Transactions: txFile.Transactions,
		Features:     ftFile.Features,
		CreatedAt:    txFile.CreatedAt,
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// LatestModTime 返回 canonical 对的最新修改时间，供 Registry 判断是否需要重载。
func (s *FileStore) LatestModTime() (time.Time, error) {
	txInfo, err := os.Stat(filepath.Join(s.Dir, canonicalTransactions))
	if err != nil {
		return time.Time{}, notFoundOr(err)
	}
	ftInfo, err := os.Stat(filepath.Join(s.Dir, canonicalFeatures))
	if err != nil {
		return time.Time{}, notFoundOr(err)
	}
	latest := txInfo.ModTime()
	if ftInfo.ModTime().After(latest) {
		latest = ftInfo.ModTime()
	}
	return latest, nil
}

// Cleanup 删除超出保留数量的备份；始终按配对删除，
// 不会留下缺另一半的孤儿备份（孤儿本身也会被清掉）。
func (s *FileStore) Cleanup() error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir: %w", err)
	}

	type pair struct{ tx, ft bool }
	versions := make(map[string]*pair)
	for _, e := range entries {
		name := e.Name()
		if version, ok := backupVersion(name, backupPrefix); ok {
			p := versions[version]
			if p == nil {
				p = &pair{}
				versions[version] = p
			}
			p.tx = true
		} else if version, ok := backupVersion(name, backupFeaturesPrefix); ok {
			p := versions[version]
			if p == nil {
				p = &pair{}
				versions[version] = p
			}
			p.ft = true
		}
	}

	complete := make([]string, 0, len(versions))
	for version, p := range versions {
		if p.tx && p.ft {
			complete = append(complete, version)
		} else {
			// 孤儿备份：直接删除
			s.removeBackups(version)
		}
	}

	// 版本号即可排序时间戳，新的在前
	sort.Sort(sort.Reverse(sort.StringSlice(complete)))
	keep := s.Keep
	if keep <= 0 {
		keep = 1
	}
	for _, version := range complete[min(keep, len(complete)):] {
		s.removeBackups(version)
	}
	return nil
}

func (s *FileStore) removeBackups(version string) {
	os.Remove(filepath.Join(s.Dir, backupPrefix+version+snapshotExt))
	os.Remove(filepath.Join(s.Dir, backupFeaturesPrefix+version+snapshotExt))
}

func backupVersion(name, prefix string) (string, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, snapshotExt) {
		return "", false
	}
	version := strings.TrimSuffix(strings.TrimPrefix(name, prefix), snapshotExt)
	if len(version) != len(core.SnapshotVersionLayout) {
		return "", false
	}
	return version, true
}

// writeAtomic 先写临时文件再 rename，保证读取方只会看到完整文件。
func (s *FileStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.Dir, name+".tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func notFoundOr(err error) error {
	if os.IsNotExist(err) {
		return core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeNotFound,
			"snapshot: canonical files not found")
	}
	return err
}

func corrupt(msg string) error {
	return core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeCorruptModel, "snapshot: "+msg)
}
