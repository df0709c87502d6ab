package world

import "errors"

var (
	// ErrOutOfRange координата за пределами поддерживаемого диапазона
	ErrOutOfRange = errors.New("координата вне поддерживаемого диапазона")
	// ErrNotMinable блок нельзя добыть
	ErrNotMinable = errors.New("блок нельзя добыть")
	// ErrUnknownBlock тип блока не зарегистрирован
	ErrUnknownBlock = errors.New("неизвестный тип блока")
	// ErrUnknownIntent неизвестное действие игрока
	ErrUnknownIntent = errors.New("неизвестное действие")
	// ErrClosed мир уже закрыт
	ErrClosed = errors.New("мир закрыт")

	// ErrChunkNotFound хранилище не содержит запись чанка
	ErrChunkNotFound = errors.New("чанк не найден в хранилище")
	// ErrMetaNotFound хранилище ещё не содержит метаданные мира
	ErrMetaNotFound = errors.New("метаданные мира не найдены")
	// ErrCorruptChunk запись чанка повреждена; чанк будет перегенерирован
	ErrCorruptChunk = errors.New("повреждённая запись чанка")
)
