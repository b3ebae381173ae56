// Package ocpp models the OCPP 1.6-J wire vocabulary: message framing
// constants, action names, status enums and the shared value types that
// appear inside request/response payloads.
package ocpp

import (
	"strconv"
	"time"
)

// MessageType is the first element of every OCPP-J frame array.
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// Action names a CALL payload. Casing is bit-exact OCPP 1.6 vocabulary.
type Action string

const (
	// Client (charge point) -> CSMS actions.
	ActionAuthorize          Action = "Authorize"
	ActionBootNotification   Action = "BootNotification"
	ActionDataTransfer       Action = "DataTransfer"
	ActionHeartbeat          Action = "Heartbeat"
	ActionMeterValues        Action = "MeterValues"
	ActionStartTransaction   Action = "StartTransaction"
	ActionStatusNotification Action = "StatusNotification"
	ActionStopTransaction    Action = "StopTransaction"
	ActionDiagnosticsStatusNotification Action = "DiagnosticsStatusNotification"
	ActionFirmwareStatusNotification    Action = "FirmwareStatusNotification"

	// CSMS -> charge point actions (dispatched by internal/dispatch).
	ActionChangeAvailability     Action = "ChangeAvailability"
	ActionChangeConfiguration    Action = "ChangeConfiguration"
	ActionClearCache             Action = "ClearCache"
	ActionClearChargingProfile   Action = "ClearChargingProfile"
	ActionGetCompositeSchedule   Action = "GetCompositeSchedule"
	ActionGetConfiguration       Action = "GetConfiguration"
	ActionGetDiagnostics         Action = "GetDiagnostics"
	ActionGetLocalListVersion    Action = "GetLocalListVersion"
	ActionRemoteStartTransaction Action = "RemoteStartTransaction"
	ActionRemoteStopTransaction  Action = "RemoteStopTransaction"
	ActionReserveNow             Action = "ReserveNow"
	ActionCancelReservation      Action = "CancelReservation"
	ActionReset                  Action = "Reset"
	ActionSendLocalList          Action = "SendLocalList"
	ActionSetChargingProfile     Action = "SetChargingProfile"
	ActionTriggerMessage         Action = "TriggerMessage"
	ActionUnlockConnector        Action = "UnlockConnector"
	ActionUpdateFirmware         Action = "UpdateFirmware"
)

// ChargePointStatus is the connector status vocabulary of StatusNotification.
type ChargePointStatus string

const (
	StatusAvailable     ChargePointStatus = "Available"
	StatusPreparing     ChargePointStatus = "Preparing"
	StatusCharging      ChargePointStatus = "Charging"
	StatusSuspendedEVSE ChargePointStatus = "SuspendedEVSE"
	StatusSuspendedEV   ChargePointStatus = "SuspendedEV"
	StatusFinishing     ChargePointStatus = "Finishing"
	StatusReserved      ChargePointStatus = "Reserved"
	StatusUnavailable   ChargePointStatus = "Unavailable"
	StatusFaulted       ChargePointStatus = "Faulted"
)

// ChargePointErrorCode accompanies every StatusNotification.
type ChargePointErrorCode string

const (
	ErrorCodeConnectorLockFailure ChargePointErrorCode = "ConnectorLockFailure"
	ErrorCodeEVCommunicationError ChargePointErrorCode = "EVCommunicationError"
	ErrorCodeGroundFailure        ChargePointErrorCode = "GroundFailure"
	ErrorCodeHighTemperature      ChargePointErrorCode = "HighTemperature"
	ErrorCodeInternalError        ChargePointErrorCode = "InternalError"
	ErrorCodeLocalListConflict    ChargePointErrorCode = "LocalListConflict"
	ErrorCodeNoError              ChargePointErrorCode = "NoError"
	ErrorCodeOtherError           ChargePointErrorCode = "OtherError"
	ErrorCodeOverCurrentFailure   ChargePointErrorCode = "OverCurrentFailure"
	ErrorCodeOverVoltage          ChargePointErrorCode = "OverVoltage"
	ErrorCodePowerMeterFailure    ChargePointErrorCode = "PowerMeterFailure"
	ErrorCodePowerSwitchFailure   ChargePointErrorCode = "PowerSwitchFailure"
	ErrorCodeReaderFailure        ChargePointErrorCode = "ReaderFailure"
	ErrorCodeResetFailure         ChargePointErrorCode = "ResetFailure"
	ErrorCodeUnderVoltage         ChargePointErrorCode = "UnderVoltage"
	ErrorCodeWeakSignal           ChargePointErrorCode = "WeakSignal"
)

// RegistrationStatus is BootNotification.conf's status field.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// AuthorizationStatus is IdTagInfo.status.
type AuthorizationStatus string

const (
	AuthorizationAccepted     AuthorizationStatus = "Accepted"
	AuthorizationBlocked      AuthorizationStatus = "Blocked"
	AuthorizationExpired      AuthorizationStatus = "Expired"
	AuthorizationInvalid      AuthorizationStatus = "Invalid"
	AuthorizationConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

// ResetType distinguishes Soft and Hard Reset.req.
type ResetType string

const (
	ResetHard ResetType = "Hard"
	ResetSoft ResetType = "Soft"
)

// AvailabilityType is ChangeAvailability.req's requested type.
type AvailabilityType string

const (
	AvailabilityInoperative AvailabilityType = "Inoperative"
	AvailabilityOperative   AvailabilityType = "Operative"
)

// AvailabilityStatus is ChangeAvailability.conf's status.
type AvailabilityStatus string

const (
	AvailabilityStatusAccepted  AvailabilityStatus = "Accepted"
	AvailabilityStatusRejected  AvailabilityStatus = "Rejected"
	AvailabilityStatusScheduled AvailabilityStatus = "Scheduled"
)

// ConfigurationStatus is ChangeConfiguration.conf's status.
type ConfigurationStatus string

const (
	ConfigurationAccepted       ConfigurationStatus = "Accepted"
	ConfigurationRejected       ConfigurationStatus = "Rejected"
	ConfigurationRebootRequired ConfigurationStatus = "RebootRequired"
	ConfigurationNotSupported   ConfigurationStatus = "NotSupported"
)

// ClearCacheStatus is ClearCache.conf's status.
type ClearCacheStatus string

const (
	ClearCacheAccepted ClearCacheStatus = "Accepted"
	ClearCacheRejected ClearCacheStatus = "Rejected"
)

// UnlockStatus is UnlockConnector.conf's status.
type UnlockStatus string

const (
	UnlockUnlocked                    UnlockStatus = "Unlocked"
	UnlockUnlockFailed                UnlockStatus = "UnlockFailed"
	UnlockNotSupported                UnlockStatus = "NotSupported"
	UnlockOngoingAuthorizedTransaction UnlockStatus = "OngoingAuthorizedTransaction"
)

// Reason is StopTransaction.req's stop reason.
type Reason string

const (
	ReasonEmergencyStop Reason = "EmergencyStop"
	ReasonEVDisconnected Reason = "EVDisconnected"
	ReasonHardReset     Reason = "HardReset"
	ReasonLocal         Reason = "Local"
	ReasonOther         Reason = "Other"
	ReasonPowerLoss     Reason = "PowerLoss"
	ReasonReboot        Reason = "Reboot"
	ReasonRemote        Reason = "Remote"
	ReasonSoftReset     Reason = "SoftReset"
	ReasonUnlockCommand Reason = "UnlockCommand"
	ReasonDeAuthorized  Reason = "DeAuthorized"
)

// ResetStatus answers Reset.conf.
type ResetStatus string

const (
	ResetStatusAccepted ResetStatus = "Accepted"
	ResetStatusRejected ResetStatus = "Rejected"
)

// RemoteStartStopStatus answers RemoteStartTransaction/RemoteStopTransaction.
type RemoteStartStopStatus string

const (
	RemoteAccepted RemoteStartStopStatus = "Accepted"
	RemoteRejected RemoteStartStopStatus = "Rejected"
)

// ReservationStatus answers ReserveNow.conf.
type ReservationStatus string

const (
	ReservationAccepted     ReservationStatus = "Accepted"
	ReservationFaulted      ReservationStatus = "Faulted"
	ReservationOccupied     ReservationStatus = "Occupied"
	ReservationRejected     ReservationStatus = "Rejected"
	ReservationUnavailable  ReservationStatus = "Unavailable"
)

// CancelReservationStatus answers CancelReservation.conf.
type CancelReservationStatus string

const (
	CancelReservationAccepted CancelReservationStatus = "Accepted"
	CancelReservationRejected CancelReservationStatus = "Rejected"
)

// ChargingProfileStatus answers SetChargingProfile.conf.
type ChargingProfileStatus string

const (
	ChargingProfileAccepted    ChargingProfileStatus = "Accepted"
	ChargingProfileRejected    ChargingProfileStatus = "Rejected"
	ChargingProfileNotSupported ChargingProfileStatus = "NotSupported"
)

// ClearChargingProfileStatus answers ClearChargingProfile.conf.
type ClearChargingProfileStatus string

const (
	ClearChargingProfileAccepted ClearChargingProfileStatus = "Accepted"
	ClearChargingProfileUnknown  ClearChargingProfileStatus = "Unknown"
)

// TriggerMessageStatus answers TriggerMessage.conf.
type TriggerMessageStatus string

const (
	TriggerAccepted      TriggerMessageStatus = "Accepted"
	TriggerRejected      TriggerMessageStatus = "Rejected"
	TriggerNotImplemented TriggerMessageStatus = "NotImplemented"
)

// DataTransferStatus answers DataTransfer.conf.
type DataTransferStatus string

const (
	DataTransferAccepted         DataTransferStatus = "Accepted"
	DataTransferRejected         DataTransferStatus = "Rejected"
	DataTransferUnknownMessageId DataTransferStatus = "UnknownMessageId"
	DataTransferUnknownVendorId  DataTransferStatus = "UnknownVendorId"
)

// GetCompositeScheduleStatus answers GetCompositeSchedule.conf.
type GetCompositeScheduleStatus string

const (
	GetCompositeScheduleAccepted GetCompositeScheduleStatus = "Accepted"
	GetCompositeScheduleRejected GetCompositeScheduleStatus = "Rejected"
)

// FirmwareStatus is the status vocabulary of FirmwareStatusNotification.req,
// not of UpdateFirmware.conf (which carries no status field).
type FirmwareStatus string

const (
	FirmwareStatusDownloaded         FirmwareStatus = "Downloaded"
	FirmwareStatusDownloadFailed     FirmwareStatus = "DownloadFailed"
	FirmwareStatusDownloading        FirmwareStatus = "Downloading"
	FirmwareStatusIdle               FirmwareStatus = "Idle"
	FirmwareStatusInstallationFailed FirmwareStatus = "InstallationFailed"
	FirmwareStatusInstalling         FirmwareStatus = "Installing"
	FirmwareStatusInstalled          FirmwareStatus = "Installed"
)

// DiagnosticsStatus answers the diagnostics-status-notification action.
type DiagnosticsStatus string

const (
	DiagnosticsStatusIdle         DiagnosticsStatus = "Idle"
	DiagnosticsStatusUploaded     DiagnosticsStatus = "Uploaded"
	DiagnosticsStatusUploadFailed DiagnosticsStatus = "UploadFailed"
	DiagnosticsStatusUploading    DiagnosticsStatus = "Uploading"
)

// SendLocalListStatus answers SendLocalList.conf.
type SendLocalListStatus string

const (
	SendLocalListAccepted        SendLocalListStatus = "Accepted"
	SendLocalListFailed          SendLocalListStatus = "Failed"
	SendLocalListNotSupported    SendLocalListStatus = "NotSupported"
	SendLocalListVersionMismatch SendLocalListStatus = "VersionMismatch"
)

// MessageTrigger is TriggerMessage.req's requestedMessage vocabulary.
type MessageTrigger string

const (
	TriggerBootNotification             MessageTrigger = "BootNotification"
	TriggerDiagnosticsStatusNotification MessageTrigger = "DiagnosticsStatusNotification"
	TriggerFirmwareStatusNotification   MessageTrigger = "FirmwareStatusNotification"
	TriggerHeartbeat                    MessageTrigger = "Heartbeat"
	TriggerMeterValues                  MessageTrigger = "MeterValues"
	TriggerStatusNotification           MessageTrigger = "StatusNotification"
)

// UpdateType is SendLocalList.req's update type.
type UpdateType string

const (
	UpdateDifferential UpdateType = "Differential"
	UpdateFull         UpdateType = "Full"
)

// AuthorizationData is one entry of SendLocalList's localAuthorizationList.
type AuthorizationData struct {
	IdTag     string     `json:"idTag" validate:"required,max=20"`
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

// CALLERROR error codes, bit-exact the OCPP 1.6 vocabulary (spec.md §4.1/§4.5).
const (
	ErrFormationViolation         = "FormationViolation"
	ErrPropertyConstraintViolation = "PropertyConstraintViolation"
	ErrNotSupported               = "NotSupported"
	ErrInternalError              = "InternalError"
	ErrNotImplemented             = "NotImplemented"
	ErrProtocolError              = "ProtocolError"
	ErrSecurityError              = "SecurityError"
	ErrTypeConstraintViolation    = "TypeConstraintViolation"
	ErrGenericError               = "GenericError"
)

// ChargingProfilePurposeType is the profile's intended use (spec.md §3).
type ChargingProfilePurposeType string

const (
	ChargePointMaxProfile ChargingProfilePurposeType = "ChargePointMaxProfile"
	TxDefaultProfile      ChargingProfilePurposeType = "TxDefaultProfile"
	TxProfile             ChargingProfilePurposeType = "TxProfile"
)

// ChargingProfileKindType distinguishes Absolute/Recurring/Relative schedules.
type ChargingProfileKindType string

const (
	ChargingProfileAbsolute  ChargingProfileKindType = "Absolute"
	ChargingProfileRecurring ChargingProfileKindType = "Recurring"
	ChargingProfileRelative  ChargingProfileKindType = "Relative"
)

// RecurrencyKindType is the recurrence period of a Recurring profile.
type RecurrencyKindType string

const (
	RecurrencyDaily  RecurrencyKindType = "Daily"
	RecurrencyWeekly RecurrencyKindType = "Weekly"
)

// ChargingRateUnit is the unit a ChargingSchedule's limits are expressed in.
type ChargingRateUnit string

const (
	ChargingRateUnitA ChargingRateUnit = "A"
	ChargingRateUnitW ChargingRateUnit = "W"
)

// DateTime serialises as ISO-8601 UTC with millisecond precision and a
// trailing Z, the exact wire format spec.md §4.1/§6 require.
type DateTime struct {
	time.Time
}

const dateTimeLayout = "2006-01-02T15:04:05.000Z"

// NewDateTime rounds to the nearest millisecond and normalises to UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{t.UTC().Round(time.Millisecond)}
}

func (dt DateTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(dt.Time.UTC().Format(dateTimeLayout))), nil
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateTimeLayout, s)
	if err != nil {
		// tolerate a bare-seconds RFC3339 timestamp from lenient peers.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	dt.Time = t.UTC()
	return nil
}

// IdTagInfo is returned by Authorize/StartTransaction/StopTransaction.
type IdTagInfo struct {
	ExpiryDate  *DateTime           `json:"expiryDate,omitempty"`
	ParentIdTag *string             `json:"parentIdTag,omitempty" validate:"omitempty,max=20"`
	Status      AuthorizationStatus `json:"status" validate:"required"`
}

// KeyValue is one entry of GetConfiguration.conf.
type KeyValue struct {
	Key      string  `json:"key" validate:"required,max=50"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty" validate:"omitempty,max=500"`
}

// MeterValue is one timestamped sample set.
type MeterValue struct {
	Timestamp    DateTime       `json:"timestamp" validate:"required"`
	SampledValue []SampledValue `json:"sampledValue" validate:"required,min=1"`
}

// SampledValue is one measurand reading within a MeterValue.
type SampledValue struct {
	Value     string          `json:"value" validate:"required"`
	Context   *ReadingContext `json:"context,omitempty"`
	Format    *ValueFormat    `json:"format,omitempty"`
	Measurand *Measurand      `json:"measurand,omitempty"`
	Phase     *Phase          `json:"phase,omitempty"`
	Location  *Location       `json:"location,omitempty"`
	Unit      *UnitOfMeasure  `json:"unit,omitempty"`
}

type ReadingContext string

const (
	ContextInterruptionBegin ReadingContext = "Interruption.Begin"
	ContextInterruptionEnd   ReadingContext = "Interruption.End"
	ContextSampleClock       ReadingContext = "Sample.Clock"
	ContextSamplePeriodic    ReadingContext = "Sample.Periodic"
	ContextTransactionBegin  ReadingContext = "Transaction.Begin"
	ContextTransactionEnd    ReadingContext = "Transaction.End"
	ContextTrigger           ReadingContext = "Trigger"
	ContextOther             ReadingContext = "Other"
)

type ValueFormat string

const (
	FormatRaw        ValueFormat = "Raw"
	FormatSignedData ValueFormat = "SignedData"
)

// Measurand enumerates the quantities a SampledValue can report.
type Measurand string

const (
	MeasurandCurrentImport             Measurand = "Current.Import"
	MeasurandCurrentOffered            Measurand = "Current.Offered"
	MeasurandEnergyActiveImportRegister Measurand = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport         Measurand = "Power.Active.Import"
	MeasurandPowerOffered              Measurand = "Power.Offered"
	MeasurandSoC                       Measurand = "SoC"
	MeasurandVoltage                   Measurand = "Voltage"
)

type Phase string

const (
	PhaseL1 Phase = "L1"
	PhaseL2 Phase = "L2"
	PhaseL3 Phase = "L3"
	PhaseN  Phase = "N"
)

type Location string

const (
	LocationBody   Location = "Body"
	LocationCable  Location = "Cable"
	LocationEV     Location = "EV"
	LocationInlet  Location = "Inlet"
	LocationOutlet Location = "Outlet"
)

type UnitOfMeasure string

const (
	UnitWh      UnitOfMeasure = "Wh"
	UnitKWh     UnitOfMeasure = "kWh"
	UnitW       UnitOfMeasure = "W"
	UnitKW      UnitOfMeasure = "kW"
	UnitA       UnitOfMeasure = "A"
	UnitV       UnitOfMeasure = "V"
	UnitPercent UnitOfMeasure = "Percent"
)

// ChargingSchedulePeriod is one (startOffsetSec, limit) entry of a schedule.
type ChargingSchedulePeriod struct {
	StartPeriod  int      `json:"startPeriod" validate:"min=0"`
	Limit        float64  `json:"limit" validate:"required"`
	NumberPhases *int     `json:"numberPhases,omitempty"`
}

// ChargingSchedule is the (duration, startSchedule, unit, periods) tuple of
// spec.md §3's Charging profile data model.
type ChargingSchedule struct {
	Duration         *int                     `json:"duration,omitempty"`
	StartSchedule    *DateTime                `json:"startSchedule,omitempty"`
	ChargingRateUnit  ChargingRateUnit         `json:"chargingRateUnit" validate:"required"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod" validate:"required,min=1,dive"`
	MinChargingRate  *float64                 `json:"minChargingRate,omitempty"`
}

// ChargingProfile is the full profile entity of spec.md §3.
type ChargingProfile struct {
	ChargingProfileId      int                        `json:"chargingProfileId" validate:"required"`
	TransactionId          *int                       `json:"transactionId,omitempty"`
	StackLevel             int                        `json:"stackLevel" validate:"min=0"`
	ChargingProfilePurpose ChargingProfilePurposeType `json:"chargingProfilePurpose" validate:"required"`
	ChargingProfileKind    ChargingProfileKindType    `json:"chargingProfileKind" validate:"required"`
	RecurrencyKind         *RecurrencyKindType        `json:"recurrencyKind,omitempty"`
	ValidFrom              *DateTime                  `json:"validFrom,omitempty"`
	ValidTo                *DateTime                  `json:"validTo,omitempty"`
	ChargingSchedule       ChargingSchedule           `json:"chargingSchedule" validate:"required"`
}
