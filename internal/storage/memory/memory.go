package memory

import (
	"github.com/fdg312/diet-hub/internal/storage"
)

// MemoryStorage — in-memory реализация storage.Storage.
// Данные живут до перезапуска процесса.
type MemoryStorage struct {
	profiles *ProfilesMemoryStorage
	ledger   *LedgerMemoryStorage
	chat     *ChatMemoryStorage
	reports  *ReportsMemoryStorage
}

// New создаёт новый пустой MemoryStorage
func New() *MemoryStorage {
	return &MemoryStorage{
		profiles: NewProfilesMemoryStorage(),
		ledger:   NewLedgerMemoryStorage(),
		chat:     NewChatMemoryStorage(),
		reports:  NewReportsMemoryStorage(),
	}
}

func (m *MemoryStorage) GetProfilesStorage() storage.ProfilesStorage {
	return m.profiles
}

func (m *MemoryStorage) GetLedgerStorage() storage.LedgerStorage {
	return m.ledger
}

func (m *MemoryStorage) GetChatStorage() storage.ChatStorage {
	return m.chat
}

func (m *MemoryStorage) GetReportsStorage() storage.ReportsStorage {
	return m.reports
}

// Close ничего не освобождает
func (m *MemoryStorage) Close() error {
	return nil
}
