package item

import "strconv"

func (r *Repo) itemPrefix() string { return r.prefix + "item:" }

func (r *Repo) itemKey(id int64) string { return r.itemPrefix() + strconv.FormatInt(id, 10) }

func (r *Repo) dimKey(dim int) string { return r.prefix + "idx:dim:" + strconv.Itoa(dim) }

func (r *Repo) recentKey() string { return r.prefix + "idx:recent" }

func (r *Repo) creatorKey(creatorID int64) string {
	return r.prefix + "idx:creator:" + strconv.FormatInt(creatorID, 10)
}

func (r *Repo) allKey() string { return r.prefix + "items" }

func (r *Repo) indexName() string { return r.prefix + "items_idx" }
