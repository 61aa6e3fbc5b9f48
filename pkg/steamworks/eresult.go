// Zaparoo Workshop
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Workshop.
//
// Zaparoo Workshop is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Workshop is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Workshop.  If not, see <http://www.gnu.org/licenses/>.

package steamworks

import "fmt"

// EResult is the Steam API result code carried by every async call result.
type EResult int32

const (
	ResultNone                          EResult = 0
	ResultOK                            EResult = 1
	ResultFail                          EResult = 2
	ResultNoConnection                  EResult = 3
	ResultInvalidPassword               EResult = 5
	ResultLoggedInElsewhere             EResult = 6
	ResultInvalidProtocolVer            EResult = 7
	ResultInvalidParam                  EResult = 8
	ResultFileNotFound                  EResult = 9
	ResultBusy                          EResult = 10
	ResultInvalidState                  EResult = 11
	ResultInvalidName                   EResult = 12
	ResultInvalidEmail                  EResult = 13
	ResultDuplicateName                 EResult = 14
	ResultAccessDenied                  EResult = 15
	ResultTimeout                       EResult = 16
	ResultBanned                        EResult = 17
	ResultAccountNotFound               EResult = 18
	ResultInvalidSteamID                EResult = 19
	ResultServiceUnavailable            EResult = 20
	ResultNotLoggedOn                   EResult = 21
	ResultPending                       EResult = 22
	ResultEncryptionFailure             EResult = 23
	ResultInsufficientPrivilege         EResult = 24
	ResultLimitExceeded                 EResult = 25
	ResultRevoked                       EResult = 26
	ResultExpired                       EResult = 27
	ResultAlreadyRedeemed               EResult = 28
	ResultDuplicateRequest              EResult = 29
	ResultAlreadyOwned                  EResult = 30
	ResultIPNotFound                    EResult = 31
	ResultPersistFailed                 EResult = 32
	ResultLockingFailed                 EResult = 33
	ResultLogonSessionReplaced          EResult = 34
	ResultConnectFailed                 EResult = 35
	ResultHandshakeFailed               EResult = 36
	ResultIOFailure                     EResult = 37
	ResultRemoteDisconnect              EResult = 38
	ResultShoppingCartNotFound          EResult = 39
	ResultBlocked                       EResult = 40
	ResultIgnored                       EResult = 41
	ResultNoMatch                       EResult = 42
	ResultAccountDisabled               EResult = 43
	ResultServiceReadOnly               EResult = 44
	ResultAccountNotFeatured            EResult = 45
	ResultAdministratorOK               EResult = 46
	ResultContentVersion                EResult = 47
	ResultTryAnotherCM                  EResult = 48
	ResultPasswordRequiredToKickSession EResult = 49
	ResultAlreadyLoggedInElsewhere      EResult = 50
	ResultSuspended                     EResult = 51
	ResultCancelled                     EResult = 52
	ResultDataCorruption                EResult = 53
	ResultDiskFull                      EResult = 54
	ResultRemoteCallFailed              EResult = 55
	ResultPasswordUnset                 EResult = 56
	ResultExternalAccountUnlinked       EResult = 57
	ResultPSNTicketInvalid              EResult = 58
	ResultExternalAccountAlreadyLinked  EResult = 59
	ResultRemoteFileConflict            EResult = 60
	ResultIllegalPassword               EResult = 61
	ResultSameAsPreviousValue           EResult = 62
	ResultAccountLogonDenied            EResult = 63
	ResultCannotUseOldPassword          EResult = 64
	ResultInvalidLoginAuthCode          EResult = 65
	ResultAccountLogonDeniedNoMail      EResult = 66
	ResultHardwareNotCapableOfIPT       EResult = 67
	ResultIPTInitError                  EResult = 68
	ResultParentalControlRestricted     EResult = 69
	ResultFacebookQueryError            EResult = 70
	ResultExpiredLoginAuthCode          EResult = 71
	ResultIPLoginRestrictionFailed      EResult = 72
	ResultAccountLockedDown             EResult = 73
	ResultRateLimitExceeded             EResult = 84
)

type resultInfo struct {
	name string
	key  string
}

// resultTable maps codes to their name and user-facing message key. Codes
// without a key still get a name for logs.
var resultTable = map[EResult]resultInfo{
	ResultOK:                            {"OK", "SteamOK"},
	ResultFail:                          {"Fail", "SteamFail"},
	ResultNoConnection:                  {"NoConnection", "SteamNoConnection"},
	ResultInvalidPassword:               {"InvalidPassword", "SteamInvalidPassword"},
	ResultLoggedInElsewhere:             {"LoggedInElsewhere", "SteamLoggedInElsewhere"},
	ResultInvalidProtocolVer:            {"InvalidProtocolVer", "SteamInvalidProtocol"},
	ResultInvalidParam:                  {"InvalidParam", "SteamInvalidParam"},
	ResultFileNotFound:                  {"FileNotFound", "SteamFileNotFound"},
	ResultBusy:                          {"Busy", "SteamBusy"},
	ResultInvalidState:                  {"InvalidState", "SteamInvalidState"},
	ResultInvalidName:                   {"InvalidName", "SteamInvalidName"},
	ResultInvalidEmail:                  {"InvalidEmail", "SteamInvalidEmail"},
	ResultDuplicateName:                 {"DuplicateName", "SteamDuplicateName"},
	ResultAccessDenied:                  {"AccessDenied", "SteamAccessDenied"},
	ResultTimeout:                       {"Timeout", "SteamTimeout"},
	ResultBanned:                        {"Banned", "SteamBanned"},
	ResultAccountNotFound:               {"AccountNotFound", "SteamAccountNotFound"},
	ResultInvalidSteamID:                {"InvalidSteamID", "SteamInvalidSteamID"},
	ResultServiceUnavailable:            {"ServiceUnavailable", "SteamServiceUnavailable"},
	ResultNotLoggedOn:                   {"NotLoggedOn", "SteamNotLoggedOn"},
	ResultPending:                       {"Pending", "SteamPending"},
	ResultEncryptionFailure:             {"EncryptionFailure", "SteamEncryptionFailure"},
	ResultInsufficientPrivilege:         {"InsufficientPrivilege", "SteamInsufficientPrivilege"},
	ResultLimitExceeded:                 {"LimitExceeded", "SteamLimitExceeded"},
	ResultRevoked:                       {"Revoked", "SteamRevoked"},
	ResultExpired:                       {"Expired", "SteamExpired"},
	ResultAlreadyRedeemed:               {"AlreadyRedeemed", "SteamAlreadyRedeemed"},
	ResultDuplicateRequest:              {"DuplicateRequest", "SteamDuplicateRequest"},
	ResultAlreadyOwned:                  {"AlreadyOwned", "SteamAlreadyOwned"},
	ResultIPNotFound:                    {"IPNotFound", "SteamIPNotFound"},
	ResultPersistFailed:                 {"PersistFailed", "SteamPersistFailed"},
	ResultLockingFailed:                 {"LockingFailed", "SteamLockingFailed"},
	ResultLogonSessionReplaced:          {"LogonSessionReplaced", "SteamLogonSessionReplaced"},
	ResultConnectFailed:                 {"ConnectFailed", "SteamConnectFailed"},
	ResultHandshakeFailed:               {"HandshakeFailed", "SteamHandshakeFailed"},
	ResultIOFailure:                     {"IOFailure", "SteamIOFailure"},
	ResultRemoteDisconnect:              {"RemoteDisconnect", "SteamRemoteDisconnect"},
	ResultShoppingCartNotFound:          {"ShoppingCartNotFound", "SteamShoppingCartNotFound"},
	ResultBlocked:                       {"Blocked", "SteamBlocked"},
	ResultIgnored:                       {"Ignored", "SteamIgnored"},
	ResultNoMatch:                       {"NoMatch", "SteamNoMatch"},
	ResultAccountDisabled:               {"AccountDisabled", "SteamAccountDisabled"},
	ResultServiceReadOnly:               {"ServiceReadOnly", "SteamServiceReadOnly"},
	ResultAccountNotFeatured:            {"AccountNotFeatured", "SteamAccountNotFeatured"},
	ResultAdministratorOK:               {"AdministratorOK", "SteamAdministratorOK"},
	ResultContentVersion:                {"ContentVersion", "SteamContentVersion"},
	ResultTryAnotherCM:                  {"TryAnotherCM", "SteamTryAnotherCM"},
	ResultPasswordRequiredToKickSession: {"PasswordRequiredToKickSession", "SteamPasswordRequiredToKickSession"},
	ResultAlreadyLoggedInElsewhere:      {"AlreadyLoggedInElsewhere", "SteamAlreadyLoggedInElsewhere"},
	ResultSuspended:                     {"Suspended", "SteamSuspended"},
	ResultCancelled:                     {"Cancelled", "SteamCancelled"},
	ResultDataCorruption:                {"DataCorruption", "SteamDataCorruption"},
	ResultDiskFull:                      {"DiskFull", "SteamDiskFull"},
	ResultRemoteCallFailed:              {"RemoteCallFailed", "SteamRemoteCallFailed"},
	ResultPasswordUnset:                 {"PasswordUnset", ""},
	ResultExternalAccountUnlinked:       {"ExternalAccountUnlinked", "SteamExternalAccountUnlinked"},
	ResultPSNTicketInvalid:              {"PSNTicketInvalid", "SteamPSNTicketInvalid"},
	ResultExternalAccountAlreadyLinked:  {"ExternalAccountAlreadyLinked", "SteamExternalAccountAlreadyLinked"},
	ResultRemoteFileConflict:            {"RemoteFileConflict", "SteamRemoteFileConflict"},
	ResultIllegalPassword:               {"IllegalPassword", "SteamIllegalPassword"},
	ResultSameAsPreviousValue:           {"SameAsPreviousValue", "SteamSameAsPreviousValue"},
	ResultAccountLogonDenied:            {"AccountLogonDenied", "SteamAccountLogonDenied"},
	ResultCannotUseOldPassword:          {"CannotUseOldPassword", "SteamCannotUseOldPassword"},
	ResultInvalidLoginAuthCode:          {"InvalidLoginAuthCode", "SteamInvalidLoginAuthCode"},
	ResultAccountLogonDeniedNoMail:      {"AccountLogonDeniedNoMail", "SteamAccountLogonDeniedNoMail"},
	ResultHardwareNotCapableOfIPT:       {"HardwareNotCapableOfIPT", "SteamHardwareNotCapableOfIPT"},
	ResultIPTInitError:                  {"IPTInitError", "SteamIPTInitError"},
	ResultParentalControlRestricted:     {"ParentalControlRestricted", "SteamParentalControlRestricted"},
	ResultFacebookQueryError:            {"FacebookQueryError", "SteamFacebookQueryError"},
	ResultExpiredLoginAuthCode:          {"ExpiredLoginAuthCode", "SteamExpiredLoginAuthCode"},
	ResultIPLoginRestrictionFailed:      {"IPLoginRestrictionFailed", "SteamIPLoginRestrictionFailed"},
	ResultAccountLockedDown:             {"AccountLockedDown", "SteamAccountLockedDown"},
	ResultRateLimitExceeded:             {"RateLimitExceeded", "SteamRateLimitExceeded"},
}

func (r EResult) String() string {
	if info, ok := resultTable[r]; ok {
		return info.name
	}
	return fmt.Sprintf("EResult(%d)", int32(r))
}

// ErrorKey returns the message key shown to the user for this code.
func (r EResult) ErrorKey() string {
	if info, ok := resultTable[r]; ok && info.key != "" {
		return info.key
	}
	return "SteamUnknownError"
}

// Describe returns the technical description written to logs.
func (r EResult) Describe() string {
	return fmt.Sprintf("Steam API error: %s (code %d)", r, int32(r))
}

// IsRecoverable reports whether retrying the same call may succeed.
func (r EResult) IsRecoverable() bool {
	switch r {
	case ResultTimeout, ResultBusy, ResultServiceUnavailable, ResultTryAnotherCM,
		ResultRemoteCallFailed, ResultPending, ResultNoConnection:
		return true
	default:
		return false
	}
}

// OK reports whether the code is ResultOK.
func (r EResult) OK() bool {
	return r == ResultOK
}
