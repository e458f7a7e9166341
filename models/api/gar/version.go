package garapimodels

// VersionInfo - элемент ленты версий сервиса публикации
// (метод GetAllDownloadFileInfo)
type VersionInfo struct {
	VersionID      int64  `json:"VersionId"`
	TextVersion    string `json:"TextVersion"`
	Date           string `json:"Date"`
	GarXMLFullURL  string `json:"GarXMLFullURL"`
	GarXMLDeltaURL string `json:"GarXMLDeltaURL"`
	// Размер и контрольная сумма заполняются источником не всегда;
	// проверка целостности выполняется только по непустым значениям
	DeltaSize int64  `json:"DeltaSize,omitempty"`
	DeltaMd5  string `json:"DeltaMd5,omitempty"`
}
