package redis

import (
	log "github.com/Sirupsen/logrus"
	redis "gopkg.in/redis.v5"

	"github.com/courscan/catalog-backend/common/conf"
	"github.com/courscan/catalog-backend/common/model"
)

type Helper struct {
	NameSpace string
	Client    *redis.Client
}

const (
	BaseNamespace = "catalog:"
	// SnapshotQueue holds keys of snapshots awaiting reconciliation.
	SnapshotQueue = BaseNamespace + "snapshot:queue"
)

func nameSpaceForApp(appName string) string {
	return BaseNamespace + appName
}

func NewHelper(config conf.Config, appName string) *Helper {
	if client, err := model.OpenRedis(config.RedisAddr(), config.Redis.Password, config.Redis.Db); err != nil {
		log.WithError(err).Fatalln()
		return nil
	} else {
		return &Helper{
			NameSpace: nameSpaceForApp(appName),
			Client:    client,
		}
	}
}

func SnapshotKey(snap model.Snapshot) string {
	return BaseNamespace + snap.TopicName()
}

// PushSnapshot stores the encoded snapshot under its own key and enqueues
// the key for the merge worker.
func (r Helper) PushSnapshot(snap model.Snapshot, data []byte) error {
	key := SnapshotKey(snap)
	if err := r.Client.Set(key, data, 0).Err(); err != nil {
		return err
	}

	return r.Client.RPush(SnapshotQueue, key).Err()
}

// PopSnapshot blocks until a snapshot key is queued and returns its payload.
func (r Helper) PopSnapshot() ([]byte, error) {
	result, err := r.Client.BRPop(0, SnapshotQueue).Result()
	if err != nil {
		return nil, err
	}

	return r.Client.Get(result[1]).Bytes()
}
