package daemon

import "docbatch/internal/api"

// Queue returns the queue operations the daemon serves over IPC.
func (d *Daemon) Queue() *api.QueueService {
	return api.NewQueueService(d.store)
}

// Content returns the content store operations the daemon serves over IPC.
func (d *Daemon) Content() *api.ContentService {
	return api.NewContentService(d.store)
}
