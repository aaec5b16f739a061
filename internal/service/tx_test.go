package service

import "context"

type testTxRepos struct {
	memories   MemoryRepositoryInterface
	chunks     ChunkRepositoryInterface
	vectors    VectorRepositoryInterface
	ingestJobs IngestJobRepositoryInterface
}

func (t *testTxRepos) Memories() MemoryRepositoryInterface {
	return t.memories
}

func (t *testTxRepos) Chunks() ChunkRepositoryInterface {
	return t.chunks
}

func (t *testTxRepos) Vectors() VectorRepositoryInterface {
	return t.vectors
}

func (t *testTxRepos) IngestJobs() IngestJobRepositoryInterface {
	return t.ingestJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
