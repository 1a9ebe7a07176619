package config

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// legacyFile is the XML configuration written by the earlier tooling.
type legacyFile struct {
	XMLName                 xml.Name `xml:"Configuration"`
	StoragePath             string   `xml:"StoragePath"`
	VitesseBackupFolderName string   `xml:"VitesseBackupFolderName"`
	SelectionMode           string   `xml:"SelectionMode"`
	StartIndex              string   `xml:"StartIndex"`
	EndIndex                string   `xml:"EndIndex"`
	Indices                 string   `xml:"Indices"`
}

func applyLegacy(cfg *Config, b []byte) error {
	var f legacyFile
	if err := xml.Unmarshal(b, &f); err != nil {
		return err
	}
	cfg.StoragePath = strings.TrimSpace(f.StoragePath)
	if name := strings.TrimSpace(f.VitesseBackupFolderName); name != "" {
		cfg.CourseName = name
	}
	if mode := strings.TrimSpace(f.SelectionMode); mode != "" {
		cfg.Selection.Mode = strings.ToLower(mode)
	}
	var err error
	if cfg.Selection.Start, err = legacyInt(f.StartIndex, cfg.Selection.Start); err != nil {
		return fmt.Errorf("StartIndex: %w", err)
	}
	if cfg.Selection.End, err = legacyInt(f.EndIndex, cfg.Selection.End); err != nil {
		return fmt.Errorf("EndIndex: %w", err)
	}
	cfg.Selection.Indices = strings.TrimSpace(f.Indices)
	return nil
}

func legacyInt(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
