package models

import "errors"

// Expected user-facing conditions. The controller catches these at its
// boundary and renders an informative view; they never propagate further.
var (
	ErrNotFound         = errors.New("запись не найдена")
	ErrGroupNotAssigned = errors.New("группа волонтёра не назначена")
	ErrPermissionDenied = errors.New("нет доступа")
	ErrSlotOccupied     = errors.New("сообщение уже открыто")
	ErrInvalidArgument  = errors.New("неверный аргумент")
)

// Infrastructure failures, logged and surfaced as a generic failure view.
var (
	ErrStorage          = errors.New("ошибка хранилища")
	ErrAssetUnavailable = errors.New("изображение недоступно")
)

// ErrDelivery marks a transport failure. The controller logs it and makes
// no further attempt for the same event.
var ErrDelivery = errors.New("ошибка доставки")
