package interaction

import (
	"sort"
	"strconv"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
)

func (r *Repo) key(id int64) string { return r.prefix + "ix:" + strconv.FormatInt(id, 10) }

func (r *Repo) seqKey() string { return r.prefix + "ix:seq" }

func (r *Repo) pendingKey() string { return r.prefix + "ix:pending" }

func (r *Repo) userKey(userID int64) string {
	return r.prefix + "ix:user:" + strconv.FormatInt(userID, 10)
}

func (r *Repo) itemKey(itemID int64) string {
	return r.prefix + "ix:item:" + strconv.FormatInt(itemID, 10)
}

func (r *Repo) uniqKey(userID, itemID int64, typ dominter.Type) string {
	return r.prefix + "ix:uniq:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(itemID, 10) + ":" + string(typ)
}

func (r *Repo) definitiveKey(userID int64) string {
	return r.prefix + "ix:definitive:" + strconv.FormatInt(userID, 10)
}

func (r *Repo) likePairsKey() string { return r.prefix + "ix:pairs:like" }

func pair(a, b int64) string {
	return strconv.FormatInt(a, 10) + "-" + strconv.FormatInt(b, 10)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
