package models

type UpdateState string

const (
	UpdateStateIdle        UpdateState = "IDLE"
	UpdateStateDiscovering UpdateState = "DISCOVERING"
	UpdateStateNoUpdates   UpdateState = "NO_UPDATES"
	UpdateStateApplying    UpdateState = "APPLYING"
	UpdateStateCommitted   UpdateState = "COMMITTED"
	UpdateStateRolledBack  UpdateState = "ROLLED_BACK"
)

var updateStateHumanName = map[UpdateState]string{
	UpdateStateIdle:        "Ожидание",
	UpdateStateDiscovering: "Проверка обновлений",
	UpdateStateNoUpdates:   "Обновлений нет",
	UpdateStateApplying:    "Применение обновлений",
	UpdateStateCommitted:   "Обновления применены",
	UpdateStateRolledBack:  "Выполнен откат",
}

func (s UpdateState) ToHuman() string {
	if human, exist := updateStateHumanName[s]; exist {
		return human
	}
	return string(s)
}

type BackupState string

const (
	BackupStateReady             BackupState = "READY"
	BackupStateRestored          BackupState = "RESTORED"
	BackupStateDropped           BackupState = "DROPPED"
	BackupStateNeedManualRestore BackupState = "NEEDS_MANUAL_RESTORE"
)

type RunMode string

const (
	RunModeFullImport RunMode = "FULL_IMPORT"
	RunModeUpdate     RunMode = "UPDATE"
	RunModeCheckOnly  RunMode = "CHECK_ONLY"
	RunModeDaemon     RunMode = "DAEMON"
)
