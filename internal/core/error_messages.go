package core

// error_messages.go maps internal errors to user-facing messages with codes
// organizers can quote to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many imports in progress           (ErrTooManyImports)
//	IMP002 - Import not found or expired            (ErrImportNotFound)
//	IMP003 - Import already finished                (ErrImportFinished)
//	IMP004 - Import cancelled                       (context.Canceled)
//	IMP005 - Import timed out                       (context.DeadlineExceeded)
//
// # Race Errors (RACE001-RACE099)
//
//	RACE001 - Race identifier is not valid          (ErrInvalidRaceID)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large                        (ErrFileTooLarge)
//	FILE002 - File is empty                         (ErrEmptyFile)
//	FILE003 - Spreadsheet cannot be opened          (ErrUnreadableSpreadsheet)
//	FILE004 - No file in the request                ("no file provided")
//	FILE005 - Unknown character set                 ("unknown charset")
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Mapping is not usable                  (ErrInvalidMapping)
//	MAP002 - Template not found                     (ErrTemplateNotFound)
//	MAP003 - Template name already used             (ErrTemplateExists)
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused                      ("connection refused")
//	DB002 - Connection reset                        ("connection reset")
//	DB003 - Deadlock                                ("deadlock")
//	DB004 - Duplicate value                         ("duplicate key")
//
// # Access Errors (AUTH001-AUTH099, RATE001)
//
//	AUTH001 - Missing or invalid token              ("unauthorized")
//	AUTH002 - Role not allowed                      ("forbidden")
//	RATE001 - Too many requests                     ("rate limit")
//
// # Default Error (ERR000)
//
// Sentinels are matched with errors.Is first, so wrapping keeps the code.
// Unwrapped driver and transport errors fall back to case-insensitive
// substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrTooManyImports, UserMessage{"Trop d'imports en cours", "Patientez quelques instants puis réessayez", "IMP001"}},
	{ErrImportNotFound, UserMessage{"Import introuvable", "L'import a peut-être expiré, relancez-le", "IMP002"}},
	{ErrImportFinished, UserMessage{"L'import est déjà terminé", "Consultez le résumé de l'import", "IMP003"}},
	{context.Canceled, UserMessage{"L'import a été annulé", "Relancez l'import quand vous êtes prêt", "IMP004"}},
	{context.DeadlineExceeded, UserMessage{"L'import a pris trop de temps", "Essayez avec un fichier plus petit", "IMP005"}},
	{ErrInvalidRaceID, UserMessage{"Identifiant de course invalide", "Vérifiez la course sélectionnée", "RACE001"}},
	{ErrFileTooLarge, UserMessage{"Fichier trop volumineux", "Découpez le fichier en plusieurs parties", "FILE001"}},
	{ErrEmptyFile, UserMessage{"Le fichier est vide", "Choisissez un fichier contenant des résultats", "FILE002"}},
	{ErrUnreadableSpreadsheet, UserMessage{"Impossible de lire le classeur", "Enregistrez-le en .xlsx ou exportez-le en CSV", "FILE003"}},
	{ErrInvalidMapping, UserMessage{"Correspondance des colonnes invalide", "Associez au moins la colonne du dossard", "MAP001"}},
	{ErrTemplateNotFound, UserMessage{"Modèle introuvable", "Choisissez un autre modèle", "MAP002"}},
	{ErrTemplateExists, UserMessage{"Un modèle porte déjà ce nom", "Choisissez un autre nom", "MAP003"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"no file provided", UserMessage{"Aucun fichier sélectionné", "Choisissez un fichier de résultats", "FILE004"}},
	{"unknown charset", UserMessage{"Encodage du fichier non reconnu", "Enregistrez le fichier en UTF-8", "FILE005"}},
	{"connection refused", UserMessage{"Base de données injoignable", "Réessayez dans quelques instants", "DB001"}},
	{"connection reset", UserMessage{"Connexion à la base interrompue", "Réessayez", "DB002"}},
	{"deadlock", UserMessage{"Base de données occupée", "Réessayez", "DB003"}},
	{"duplicate key", UserMessage{"Valeur en double", "Vérifiez les doublons dans le fichier", "DB004"}},
	{"unauthorized", UserMessage{"Authentification requise", "Reconnectez-vous", "AUTH001"}},
	{"forbidden", UserMessage{"Action non autorisée", "Demandez les droits organisateur", "AUTH002"}},
	{"rate limit", UserMessage{"Trop de requêtes", "Patientez avant de réessayer", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "Une erreur inattendue est survenue",
	Action:  "Réessayez ou contactez le support",
	Code:    "ERR000",
}

// MapError converts an error to a user message. Returns the zero value for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
